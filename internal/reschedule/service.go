package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/config"
	"github.com/hackgods/wellness-reschedule/internal/logging"
	"github.com/hackgods/wellness-reschedule/internal/metrics"
	"github.com/hackgods/wellness-reschedule/internal/notification"
	redisclient "github.com/hackgods/wellness-reschedule/internal/redis"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

var tracer = otel.Tracer("wellness/reschedule")

const (
	triggerPropose  = "propose"
	triggerResponse = "response"
	triggerRead     = "read"
	triggerSweep    = "sweep"
)

type Service struct {
	runner  TxRunner
	locker  redisclient.Locker
	window  time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wires the workflow. locker may be nil, in which case concurrent
// proposals are only serialised by the database.
func NewService(runner TxRunner, locker redisclient.Locker, cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *Service {
	window := cfg.RescheduleTTL
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Service{
		runner:  runner,
		locker:  locker,
		window:  window,
		logger:  logging.OrNop(logger),
		metrics: m,
		now:     time.Now,
	}
}

// Propose creates a pending reschedule request for an appointment and tells
// the patient about it.
func (s *Service) Propose(ctx context.Context, in ProposeInput) (*Request, error) {
	ctx, span := tracer.Start(ctx, "reschedule.propose")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", in.AppointmentID.String()))

	created, err := s.propose(ctx, in)
	s.metrics.ObserveProposal(resultLabel(err))
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("reschedule.id", created.ID.String()))
	s.logger.Info("reschedule proposed",
		zap.String("request_id", created.ID.String()),
		zap.String("appointment_id", created.AppointmentID.String()),
		zap.String("proposed", created.ProposedDate+" "+created.ProposedTime),
		zap.Time("expires_at", created.ExpiresAt),
	)
	return created, nil
}

func (s *Service) propose(ctx context.Context, in ProposeInput) (*Request, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: appointmentId is required", ErrInvalidArgument)
	}
	if in.ProposedDate == "" || in.ProposedTime == "" {
		return nil, fmt.Errorf("%w: proposedDate and proposedTime are required", ErrInvalidArgument)
	}
	if err := appointment.ValidateSchedule(in.ProposedDate, in.ProposedTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var created *Request
	run := func(ctx context.Context) error {
		return s.runner.InTx(ctx, func(tx Tx) error {
			r, err := s.createRequest(ctx, tx, in)
			if err != nil {
				return err
			}
			created = r
			return nil
		})
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, redisclient.AppointmentLockKey(in.AppointmentID), run)
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrProposalInFlight
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) createRequest(ctx context.Context, tx Tx, in ProposeInput) (*Request, error) {
	appt, err := tx.Appointments().GetForUpdate(ctx, in.AppointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	// a provider may only move their own appointments
	if in.ProviderID != nil && (appt.ProviderID == nil || *appt.ProviderID != *in.ProviderID) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if appt.PatientID == nil {
		return nil, ErrNoPatient
	}
	if !appt.Active() {
		return nil, appointment.ErrAppointmentInactive
	}

	now := s.now().UTC()

	existing, err := tx.Requests().GetPendingForAppointment(ctx, appt.ID)
	switch {
	case err == nil:
		if !existing.Overdue(now) {
			return nil, ErrPendingRequestExists
		}
		if err := s.expire(ctx, tx, existing, now, triggerPropose); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrRequestNotFound):
	default:
		return nil, fmt.Errorf("load pending request: %w", err)
	}

	providerID := in.ProviderID
	if providerID == nil {
		providerID = appt.ProviderID
	}

	created, err := tx.Requests().Insert(ctx, Request{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		ProviderID:    providerID,
		UserID:        *appt.PatientID,
		OriginalDate:  appt.ScheduledDate,
		OriginalTime:  appt.ScheduledTime,
		ProposedDate:  in.ProposedDate,
		ProposedTime:  in.ProposedTime,
		Reason:        in.Reason,
		Status:        StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.window),
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher(tx).NotifyUser(ctx, notification.Message{
		RecipientID: created.UserID,
		Type:        notification.TypeRescheduleRequest,
		Title:       "Reschedule requested",
		Message: fmt.Sprintf("Your provider proposed moving your appointment from %s %s to %s %s.",
			created.OriginalDate, created.OriginalTime, created.ProposedDate, created.ProposedTime),
		ReferenceID:   created.ID.String(),
		ReferenceType: notification.ReferenceTypeReschedule,
	})

	return created, nil
}

// Respond applies the patient's accept or decline. A decline whose wallet
// credit fails still commits the cancellation and returns ErrRefundFailed
// together with the outcome.
func (s *Service) Respond(ctx context.Context, in RespondInput) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "reschedule.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("reschedule.id", in.RequestID.String()),
		attribute.String("reschedule.action", string(in.Action)),
	)

	out, err := s.respond(ctx, in)
	s.metrics.ObserveResponse(string(in.Action), resultLabel(err))
	if err != nil {
		recordError(span, err)
		if errors.Is(err, ErrRefundFailed) {
			s.logger.Error("refund left pending",
				zap.String("request_id", in.RequestID.String()),
				zap.Error(err),
			)
		}
		return out, err
	}

	s.logger.Info("reschedule answered",
		zap.String("request_id", out.Request.ID.String()),
		zap.String("status", string(out.Request.Status)),
		zap.String("refund_amount", out.RefundAmount.StringFixed(2)),
	)
	return out, nil
}

func (s *Service) respond(ctx context.Context, in RespondInput) (*Outcome, error) {
	if in.RequestID == uuid.Nil || in.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: requestId and userId are required", ErrInvalidArgument)
	}
	if !in.Action.Valid() {
		return nil, fmt.Errorf("%w: action must be accept or decline", ErrInvalidArgument)
	}

	var (
		run      *effectRun
		decision Decision
	)
	err := s.runner.InTx(ctx, func(tx Tx) error {
		req, err := tx.Requests().GetByID(ctx, in.RequestID)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return err
			}
			return fmt.Errorf("load reschedule request: %w", err)
		}
		if req.UserID != in.UserID {
			return ErrRequestNotFound
		}

		// same lock order as Propose: appointment, then request
		appt, err := tx.Appointments().GetForUpdate(ctx, req.AppointmentID)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if req, err = tx.Requests().GetForUpdate(ctx, req.ID); err != nil {
			return fmt.Errorf("lock reschedule request: %w", err)
		}

		now := s.now().UTC()
		decision = Transition(req.Status, in.Action, now, req.ExpiresAt)
		if decision.Err != nil && len(decision.Effects) == 0 {
			return decision.Err
		}
		if decision.Err == nil && !appt.Active() {
			// the appointment was cancelled under the request; retire it
			decision = Decision{Next: StatusExpired, Effects: expiryEffects, Err: appointment.ErrAppointmentInactive}
		}

		run, err = s.apply(ctx, tx, req, appt, decision, now, triggerResponse)
		return err
	})
	if err != nil {
		return nil, err
	}

	// the expiry write is committed before the response is rejected
	if decision.Err != nil {
		return nil, decision.Err
	}

	out := &Outcome{
		Request:      run.req,
		Action:       in.Action,
		RefundAmount: run.refund,
		Refunded:     run.refunded,
	}
	if run.refundErr != nil {
		return out, fmt.Errorf("%w: %v", ErrRefundFailed, run.refundErr)
	}
	return out, nil
}

// effectRun carries state between the effects of one decision.
type effectRun struct {
	req          *Request
	appt         *appointment.Appointment
	priorPayment appointment.PaymentStatus
	refund       decimal.Decimal
	refunded     bool
	refundErr    error
}

// apply runs the effects of a decision in order. appt is the locked
// appointment and may be nil for expiry-only decisions.
func (s *Service) apply(ctx context.Context, tx Tx, req *Request, appt *appointment.Appointment, d Decision, now time.Time, trigger string) (*effectRun, error) {
	run := &effectRun{req: req, appt: appt, refund: decimal.Zero}
	notify := s.dispatcher(tx)

	for _, effect := range d.Effects {
		switch effect {
		case EffectExpireRequest:
			if err := s.recordStatus(ctx, tx, run, StatusExpired, nil); err != nil {
				return nil, err
			}
			s.metrics.ObserveExpiration(trigger)

		case EffectNotifyExpiry:
			s.notifyExpiry(ctx, notify, run.req)

		case EffectMoveAppointment:
			appt, err := tx.Appointments().UpdateSchedule(ctx, req.AppointmentID, req.ProposedDate, req.ProposedTime)
			if err != nil {
				return nil, fmt.Errorf("move appointment: %w", err)
			}
			run.appt = appt

		case EffectSyncSlot:
			if err := tx.Slots().SyncSlotToAppointment(ctx, req.AppointmentID, req.ProposedDate, req.ProposedTime); err != nil {
				return nil, err
			}

		case EffectCancelAppointment:
			if run.appt == nil {
				return nil, fmt.Errorf("cancel appointment %s: not loaded", req.AppointmentID)
			}
			run.priorPayment = run.appt.PaymentStatus
			run.refund = run.appt.RefundDue()

			cancelled, err := tx.Appointments().CancelForRefund(ctx, req.AppointmentID, appointment.CancelParams{
				Reason:       DeclineReason,
				CancelledBy:  appointment.CancelledByUser,
				RefundAmount: run.refund,
			})
			if err != nil {
				return nil, fmt.Errorf("cancel appointment: %w", err)
			}
			run.appt = cancelled

		case EffectRemoveSlot:
			if err := tx.Slots().RemoveSlot(ctx, req.AppointmentID); err != nil {
				return nil, err
			}

		case EffectRefund:
			if run.priorPayment != appointment.PaymentPaid {
				continue
			}
			appt, err := s.creditRefund(ctx, tx, req.AppointmentID, req.UserID, run.refund)
			if err != nil {
				run.refundErr = err
				continue
			}
			run.appt = appt
			run.refunded = true

		case EffectRecordResponse:
			respondedAt := now
			if err := s.recordStatus(ctx, tx, run, d.Next, &respondedAt); err != nil {
				return nil, err
			}

		case EffectNotifyProvider:
			s.notifyOutcome(ctx, notify, run)
		}
	}

	return run, nil
}

func (s *Service) recordStatus(ctx context.Context, tx Tx, run *effectRun, to Status, at *time.Time) error {
	updated, err := tx.Requests().TransitionStatus(ctx, run.req.ID, to, at)
	if errors.Is(err, ErrNotPending) {
		return ErrRequestAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("record request status: %w", err)
	}
	run.req = updated
	return nil
}

// creditRefund credits the wallet and marks the appointment refunded inside a
// savepoint. A zero amount only marks the appointment.
func (s *Service) creditRefund(ctx context.Context, tx Tx, appointmentID, userID uuid.UUID, amount decimal.Decimal) (*appointment.Appointment, error) {
	var refunded *appointment.Appointment
	err := tx.Savepoint(ctx, func(sp Tx) error {
		if amount.IsPositive() {
			ledger := wallet.NewLedger(sp.Wallets(), s.logger, s.metrics)
			if _, err := ledger.Credit(ctx, wallet.Entry{
				UserID:        userID,
				Amount:        amount,
				Category:      wallet.CategoryAppointmentRefund,
				Description:   "Refund for declined reschedule request",
				ReferenceID:   appointmentID.String(),
				ReferenceType: wallet.ReferenceTypeAppointment,
			}); err != nil {
				return fmt.Errorf("credit wallet: %w", err)
			}
		}

		appt, err := sp.Appointments().MarkRefunded(ctx, appointmentID)
		if err != nil {
			return err
		}
		refunded = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func (s *Service) expire(ctx context.Context, tx Tx, req *Request, now time.Time, trigger string) error {
	run, err := s.apply(ctx, tx, req, nil, Decision{Next: StatusExpired, Effects: expiryEffects}, now, trigger)
	if err != nil {
		return err
	}
	*req = *run.req
	return nil
}

// Get returns a request owned by userID, expiring it first when it is
// overdue. Requests of other users read as not found.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Request, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: id and userId are required", ErrInvalidArgument)
	}
	var out *Request
	err := s.runner.InTx(ctx, func(tx Tx) error {
		req, err := tx.Requests().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return ErrRequestNotFound
		}
		now := s.now().UTC()
		if req.Overdue(now) {
			if err := s.expire(ctx, tx, req, now, triggerRead); err != nil {
				return err
			}
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []Request
	err := s.runner.InTx(ctx, func(tx Tx) error {
		reqs, err := tx.Requests().ListForUser(ctx, userID, limit)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range reqs {
			if reqs[i].Overdue(now) {
				if err := s.expire(ctx, tx, &reqs[i], now, triggerRead); err != nil {
					return err
				}
			}
		}
		out = reqs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireOverdue moves up to limit overdue pending requests to expired and
// returns how many were moved. Each request expires in its own savepoint.
func (s *Service) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ctx, span := tracer.Start(ctx, "reschedule.expire_overdue")
	defer span.End()

	expired := 0
	err := s.runner.InTx(ctx, func(tx Tx) error {
		now := s.now().UTC()
		overdue, err := tx.Requests().ListOverduePending(ctx, now, limit)
		if err != nil {
			return err
		}

		for i := range overdue {
			req := overdue[i]
			err := tx.Savepoint(ctx, func(sp Tx) error {
				return s.expire(ctx, sp, &req, now, triggerSweep)
			})
			if err != nil {
				s.logger.Warn("could not expire reschedule request",
					zap.String("request_id", req.ID.String()),
					zap.Error(err),
				)
				continue
			}
			expired++
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return expired, err
	}

	span.SetAttributes(attribute.Int("expired_count", expired))
	return expired, nil
}

// ListRefundPending lists cancelled appointments whose refund never landed.
func (s *Service) ListRefundPending(ctx context.Context, limit int) ([]appointment.Appointment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []appointment.Appointment
	err := s.runner.InTx(ctx, func(tx Tx) error {
		appts, err := tx.Appointments().ListRefundPending(ctx, limit)
		out = appts
		return err
	})
	return out, err
}

// SettleRefund retries the wallet credit of a refund_pending appointment.
func (s *Service) SettleRefund(ctx context.Context, appointmentID uuid.UUID) (*appointment.Appointment, error) {
	ctx, span := tracer.Start(ctx, "reschedule.settle_refund")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", appointmentID.String()))

	var settled *appointment.Appointment
	err := s.runner.InTx(ctx, func(tx Tx) error {
		appt, err := tx.Appointments().GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		// never-paid cancellations also sit in refund_pending but owe nothing
		if appt.PaymentStatus != appointment.PaymentRefundPending || !appt.PaidBeforeCancel {
			return appointment.ErrRefundNotPending
		}
		if appt.PatientID == nil {
			return ErrNoPatient
		}

		amount := decimal.Zero
		if appt.RefundAmount.Valid {
			amount = appt.RefundAmount.Decimal
		}

		updated, err := s.creditRefund(ctx, tx, appt.ID, *appt.PatientID, amount)
		if errors.Is(err, wallet.ErrDuplicateTransaction) {
			// the credit already landed, only the status is behind
			updated, err = tx.Appointments().MarkRefunded(ctx, appt.ID)
		}
		if err != nil {
			return err
		}
		settled = updated

		s.dispatcher(tx).NotifyUser(ctx, notification.Message{
			RecipientID:   *appt.PatientID,
			Type:          notification.TypeRefundIssued,
			Title:         "Refund issued",
			Message:       fmt.Sprintf("A refund of %s was added to your wallet.", amount.StringFixed(2)),
			ReferenceID:   appt.ID.String(),
			ReferenceType: wallet.ReferenceTypeAppointment,
		})
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("refund settled",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("amount", settled.RefundAmount.Decimal.StringFixed(2)),
	)
	return settled, nil
}

func (s *Service) dispatcher(tx Tx) *notification.Dispatcher {
	return notification.NewDispatcher(tx.Notifications(), s.logger, s.metrics)
}

func (s *Service) notifyExpiry(ctx context.Context, d *notification.Dispatcher, req *Request) {
	msg := notification.Message{
		Type:          notification.TypeRescheduleExpired,
		Title:         "Reschedule request expired",
		Message:       fmt.Sprintf("The proposal to move the appointment to %s %s expired without an answer.", req.ProposedDate, req.ProposedTime),
		ReferenceID:   req.ID.String(),
		ReferenceType: notification.ReferenceTypeReschedule,
	}

	msg.RecipientID = req.UserID
	d.NotifyUser(ctx, msg)

	if req.ProviderID != nil {
		msg.RecipientID = *req.ProviderID
		d.NotifyProvider(ctx, msg)
	}
}

func (s *Service) notifyOutcome(ctx context.Context, d *notification.Dispatcher, run *effectRun) {
	req := run.req
	if req.ProviderID == nil {
		return
	}

	msg := notification.Message{
		RecipientID:   *req.ProviderID,
		ReferenceID:   req.ID.String(),
		ReferenceType: notification.ReferenceTypeReschedule,
	}

	switch req.Status {
	case StatusAccepted:
		msg.Type = notification.TypeRescheduleAccepted
		msg.Title = "Reschedule accepted"
		msg.Message = fmt.Sprintf("The patient accepted the new time %s %s.", req.ProposedDate, req.ProposedTime)
	case StatusDeclined:
		msg.Type = notification.TypeRescheduleDeclined
		msg.Title = "Reschedule declined"
		switch {
		case run.refundErr != nil:
			msg.Message = fmt.Sprintf("The patient declined and the appointment was cancelled. A refund of %s is pending.", run.refund.StringFixed(2))
		case run.refunded:
			msg.Message = fmt.Sprintf("The patient declined and the appointment was cancelled. A refund of %s was processed.", run.refund.StringFixed(2))
		default:
			msg.Message = "The patient declined and the appointment was cancelled."
		}
	default:
		return
	}

	d.NotifyProvider(ctx, msg)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrNoPatient):
		return "invalid"
	case errors.Is(err, appointment.ErrAppointmentNotFound), errors.Is(err, ErrRequestNotFound):
		return "not_found"
	case errors.Is(err, ErrPendingRequestExists), errors.Is(err, ErrProposalInFlight):
		return "conflict"
	case errors.Is(err, ErrRequestAlreadyProcessed), errors.Is(err, appointment.ErrAppointmentInactive):
		return "invalid_state"
	case errors.Is(err, ErrRequestExpired):
		return "expired"
	case errors.Is(err, ErrRefundFailed):
		return "refund_failed"
	default:
		return "error"
	}
}
