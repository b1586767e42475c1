package reschedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/notification"
	"github.com/hackgods/wellness-reschedule/internal/slot"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

// memState is everything a unit of work can change. Pointer fields inside the
// records are never mutated in place, so a shallow copy per record is enough.
type memState struct {
	appointments  map[uuid.UUID]appointment.Appointment
	slots         map[uuid.UUID]slot.BookingSlot
	wallets       map[uuid.UUID]wallet.Wallet
	transactions  []wallet.Transaction
	requests      map[uuid.UUID]Request
	notifications []notification.Notification
}

func (s memState) clone() memState {
	c := memState{
		appointments:  make(map[uuid.UUID]appointment.Appointment, len(s.appointments)),
		slots:         make(map[uuid.UUID]slot.BookingSlot, len(s.slots)),
		wallets:       make(map[uuid.UUID]wallet.Wallet, len(s.wallets)),
		transactions:  append([]wallet.Transaction(nil), s.transactions...),
		requests:      make(map[uuid.UUID]Request, len(s.requests)),
		notifications: append([]notification.Notification(nil), s.notifications...),
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

// memStore is a serialisable in-memory stand-in for Postgres. One InTx holds
// the store lock for its whole duration.
type memStore struct {
	mu  sync.Mutex
	st  memState
	now func() time.Time

	creditErr       error
	notificationErr error
	slotErr         error
}

func newMemStore() *memStore {
	return &memStore{
		st: memState{
			appointments: map[uuid.UUID]appointment.Appointment{},
			slots:        map[uuid.UUID]slot.BookingSlot{},
			wallets:      map[uuid.UUID]wallet.Wallet{},
			requests:     map[uuid.UUID]Request{},
		},
		now: time.Now,
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unit(fn)
}

func (m *memStore) unit(fn func(Tx) error) error {
	snapshot := m.st.clone()
	if err := fn(memTx{m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// snapshot helpers for assertions
func (m *memStore) appointment(id uuid.UUID) appointment.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appointments[id]
}

func (m *memStore) request(id uuid.UUID) Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.requests[id]
}

func (m *memStore) slot(id uuid.UUID) (slot.BookingSlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.slots[id]
	return s, ok
}

func (m *memStore) balance(userID uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.wallets[userID].Balance
}

func (m *memStore) walletTransactions(userID uuid.UUID) []wallet.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []wallet.Transaction
	for _, t := range m.st.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) pendingCount(appointmentID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.st.requests {
		if r.AppointmentID == appointmentID && r.Status == StatusPending {
			n++
		}
	}
	return n
}

func (m *memStore) notificationsFor(audience notification.Audience, recipient uuid.UUID) []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Notification
	for _, n := range m.st.notifications {
		if n.Audience == audience && n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	return out
}

type memTx struct{ m *memStore }

func (t memTx) Appointments() appointment.Repository { return memAppointments{t.m} }
func (t memTx) Slots() slot.Reconciler { return memSlots{t.m} }
func (t memTx) Wallets() wallet.Repository { return memWallets{t.m} }
func (t memTx) Requests() Repository { return memRequests{t.m} }
func (t memTx) Notifications() notification.Repository { return memNotifications{t.m} }

func (t memTx) Savepoint(_ context.Context, fn func(Tx) error) error {
	return t.m.unit(fn)
}

type memAppointments struct{ m *memStore }

func (r memAppointments) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := r.m.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r memAppointments) GetForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return r.GetByID(ctx, id)
}

func (r memAppointments) UpdateSchedule(_ context.Context, id uuid.UUID, date, clock string) (*appointment.Appointment, error) {
	a, ok := r.m.st.appointments[id]
	if !ok || !a.Active() {
		return nil, appointment.ErrAppointmentInactive
	}
	a.ScheduledDate, a.ScheduledTime = date, clock
	a.UpdatedAt = r.m.now()
	r.m.st.appointments[id] = a
	return &a, nil
}

func (r memAppointments) CancelForRefund(_ context.Context, id uuid.UUID, p appointment.CancelParams) (*appointment.Appointment, error) {
	a, ok := r.m.st.appointments[id]
	if !ok || !a.Active() {
		return nil, appointment.ErrAppointmentInactive
	}
	reason, by := p.Reason, p.CancelledBy
	a.Status = appointment.StatusCancelled
	a.CancellationReason = &reason
	a.CancelledBy = &by
	a.RefundAmount = decimal.NewNullDecimal(p.RefundAmount)
	a.PaidBeforeCancel = a.PaymentStatus == appointment.PaymentPaid
	a.PaymentStatus = appointment.PaymentRefundPending
	r.m.st.appointments[id] = a
	return &a, nil
}

func (r memAppointments) MarkRefunded(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := r.m.st.appointments[id]
	if !ok || a.PaymentStatus != appointment.PaymentRefundPending {
		return nil, appointment.ErrRefundNotPending
	}
	a.PaymentStatus = appointment.PaymentRefunded
	r.m.st.appointments[id] = a
	return &a, nil
}

func (r memAppointments) ListRefundPending(_ context.Context, limit int) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range r.m.st.appointments {
		if a.Status == appointment.StatusCancelled && a.PaymentStatus == appointment.PaymentRefundPending &&
			a.PaidBeforeCancel && a.RefundAmount.Valid && a.RefundAmount.Decimal.IsPositive() && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

type memSlots struct{ m *memStore }

func (r memSlots) SyncSlotToAppointment(_ context.Context, appointmentID uuid.UUID, date, clock string) error {
	if r.m.slotErr != nil {
		return r.m.slotErr
	}
	r.m.st.slots[appointmentID] = slot.BookingSlot{AppointmentID: appointmentID, SlotDate: date, StartTime: clock, UpdatedAt: r.m.now()}
	return nil
}

func (r memSlots) RemoveSlot(_ context.Context, appointmentID uuid.UUID) error {
	if r.m.slotErr != nil {
		return r.m.slotErr
	}
	delete(r.m.st.slots, appointmentID)
	return nil
}

func (r memSlots) GetSlot(_ context.Context, appointmentID uuid.UUID) (*slot.BookingSlot, error) {
	s, ok := r.m.st.slots[appointmentID]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	return &s, nil
}

type memWallets struct{ m *memStore }

func (r memWallets) GetByUserID(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w, ok := r.m.st.wallets[userID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &w, nil
}

func (r memWallets) GetOrCreateForUpdate(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w, ok := r.m.st.wallets[userID]
	if !ok {
		w = wallet.Wallet{ID: uuid.New(), UserID: userID, Balance: decimal.Zero, CreatedAt: r.m.now()}
		r.m.st.wallets[userID] = w
	}
	return &w, nil
}

func (r memWallets) UpdateBalance(_ context.Context, walletID uuid.UUID, balance decimal.Decimal) error {
	for userID, w := range r.m.st.wallets {
		if w.ID == walletID {
			w.Balance = balance
			r.m.st.wallets[userID] = w
			return nil
		}
	}
	return wallet.ErrWalletNotFound
}

func (r memWallets) InsertTransaction(_ context.Context, t wallet.Transaction) (*wallet.Transaction, error) {
	if r.m.creditErr != nil {
		return nil, r.m.creditErr
	}
	for _, existing := range r.m.st.transactions {
		if existing.ReferenceType == t.ReferenceType && existing.ReferenceID == t.ReferenceID && existing.Category == t.Category {
			return nil, wallet.ErrDuplicateTransaction
		}
	}
	t.CreatedAt = r.m.now()
	r.m.st.transactions = append(r.m.st.transactions, t)
	return &t, nil
}

func (r memWallets) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	for _, t := range r.m.st.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memWallets) SumByType(_ context.Context, walletID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	credits, debits := decimal.Zero, decimal.Zero
	for _, t := range r.m.st.transactions {
		if t.WalletID != walletID {
			continue
		}
		if t.Type == wallet.TypeCredit {
			credits = credits.Add(t.Amount)
		} else {
			debits = debits.Add(t.Amount)
		}
	}
	return credits, debits, nil
}

type memRequests struct{ m *memStore }

func (r memRequests) Insert(_ context.Context, req Request) (*Request, error) {
	for _, existing := range r.m.st.requests {
		if existing.AppointmentID == req.AppointmentID && existing.Status == StatusPending {
			return nil, ErrPendingRequestExists
		}
	}
	req.Status = StatusPending
	r.m.st.requests[req.ID] = req
	return &req, nil
}

func (r memRequests) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	req, ok := r.m.st.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r memRequests) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.GetByID(ctx, id)
}

func (r memRequests) GetPendingForAppointment(_ context.Context, appointmentID uuid.UUID) (*Request, error) {
	for _, req := range r.m.st.requests {
		if req.AppointmentID == appointmentID && req.Status == StatusPending {
			return &req, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (r memRequests) TransitionStatus(_ context.Context, id uuid.UUID, to Status, respondedAt *time.Time) (*Request, error) {
	req, ok := r.m.st.requests[id]
	if !ok || req.Status != StatusPending {
		return nil, ErrNotPending
	}
	req.Status = to
	if respondedAt != nil {
		at := *respondedAt
		req.UserResponseAt = &at
	}
	r.m.st.requests[id] = req
	return &req, nil
}

func (r memRequests) ListOverduePending(_ context.Context, now time.Time, limit int) ([]Request, error) {
	var out []Request
	for _, req := range r.m.st.requests {
		if req.Overdue(now) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memRequests) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]Request, error) {
	var out []Request
	for _, req := range r.m.st.requests {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memNotifications struct{ m *memStore }

func (r memNotifications) Insert(_ context.Context, n notification.Notification) error {
	if r.m.notificationErr != nil {
		return r.m.notificationErr
	}
	n.CreatedAt = r.m.now()
	r.m.st.notifications = append(r.m.st.notifications, n)
	return nil
}

func (r memNotifications) ListForRecipient(_ context.Context, audience notification.Audience, recipientID uuid.UUID, limit int) ([]notification.Notification, error) {
	var out []notification.Notification
	for _, n := range r.m.st.notifications {
		if n.Audience == audience && n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r memNotifications) MarkRead(_ context.Context, audience notification.Audience, id, recipientID uuid.UUID) error {
	return nil
}

func (r memNotifications) FetchUnsent(_ context.Context, audience notification.Audience, limit int) ([]notification.Notification, error) {
	return nil, nil
}

func (r memNotifications) MarkSent(_ context.Context, audience notification.Audience, id uuid.UUID) (bool, error) {
	return false, nil
}
