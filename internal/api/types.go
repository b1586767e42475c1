package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/notification"
	"github.com/hackgods/wellness-reschedule/internal/reschedule"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

type ProposeRescheduleRequest struct {
	AppointmentID string  `json:"appointmentId" validate:"required,uuid"`
	ProviderID    string  `json:"providerId" validate:"omitempty,uuid"`
	ProposedDate  string  `json:"proposedDate" validate:"required,wire_date"`
	ProposedTime  string  `json:"proposedTime" validate:"required,wire_time"`
	Reason        *string `json:"reason,omitempty"`
}

type RespondRescheduleRequest struct {
	RequestID string `json:"requestId" validate:"required,uuid"`
	Action    string `json:"action" validate:"required,oneof=accept decline"`
	UserID    string `json:"userId" validate:"required,uuid"`
}

// RescheduleRequestResponse mirrors the stored reschedule_requests row.
type RescheduleRequestResponse struct {
	ID             uuid.UUID  `json:"id"`
	AppointmentID  uuid.UUID  `json:"appointment_id"`
	ProviderID     *uuid.UUID `json:"provider_id"`
	UserID         uuid.UUID  `json:"user_id"`
	OriginalDate   string     `json:"original_date"`
	OriginalTime   string     `json:"original_time"`
	ProposedDate   string     `json:"proposed_date"`
	ProposedTime   string     `json:"proposed_time"`
	Reason         *string    `json:"reason"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UserResponseAt *time.Time `json:"user_response_at"`
}

func newRescheduleRequestResponse(r *reschedule.Request) RescheduleRequestResponse {
	return RescheduleRequestResponse{
		ID:             r.ID,
		AppointmentID:  r.AppointmentID,
		ProviderID:     r.ProviderID,
		UserID:         r.UserID,
		OriginalDate:   r.OriginalDate,
		OriginalTime:   r.OriginalTime,
		ProposedDate:   r.ProposedDate,
		ProposedTime:   r.ProposedTime,
		Reason:         r.Reason,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		UserResponseAt: r.UserResponseAt,
	}
}

type ProposeRescheduleResponse struct {
	Success           bool                      `json:"success"`
	RescheduleRequest RescheduleRequestResponse `json:"rescheduleRequest"`
}

type RespondRescheduleResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	RefundAmount json.Number `json:"refundAmount,omitempty"`
}

type RescheduleListResponse struct {
	Success  bool                        `json:"success"`
	Requests []RescheduleRequestResponse `json:"requests"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID   `json:"id"`
	PatientID          *uuid.UUID  `json:"patient_id"`
	ProviderID         *uuid.UUID  `json:"provider_id"`
	ServiceID          string      `json:"service_id"`
	ScheduledDate      string      `json:"scheduled_date"`
	ScheduledTime      string      `json:"scheduled_time"`
	Status             string      `json:"status"`
	PaymentStatus      string      `json:"payment_status"`
	CancellationReason *string     `json:"cancellation_reason"`
	CancelledBy        *string     `json:"cancelled_by"`
	RefundAmount       json.Number `json:"refund_amount,omitempty"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ProviderID:         a.ProviderID,
		ServiceID:          a.ServiceID,
		ScheduledDate:      a.ScheduledDate,
		ScheduledTime:      a.ScheduledTime,
		Status:             string(a.Status),
		PaymentStatus:      string(a.PaymentStatus),
		CancellationReason: a.CancellationReason,
		CancelledBy:        a.CancelledBy,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.RefundAmount.Valid {
		resp.RefundAmount = json.Number(a.RefundAmount.Decimal.StringFixed(2))
	}
	return resp
}

type WalletResponse struct {
	UserID  uuid.UUID   `json:"user_id"`
	Balance json.Number `json:"balance"`
}

type WalletTransactionResponse struct {
	ID            uuid.UUID   `json:"id"`
	Type          string      `json:"type"`
	Amount        json.Number `json:"amount"`
	BalanceAfter  json.Number `json:"balance_after"`
	Category      string      `json:"category"`
	Description   string      `json:"description"`
	ReferenceID   string      `json:"reference_id,omitempty"`
	ReferenceType string      `json:"reference_type,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func newWalletTransactionResponse(t wallet.Transaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        json.Number(t.Amount.StringFixed(2)),
		BalanceAfter:  json.Number(t.BalanceAfter.StringFixed(2)),
		Category:      t.Category,
		Description:   t.Description,
		ReferenceID:   t.ReferenceID,
		ReferenceType: t.ReferenceType,
		CreatedAt:     t.CreatedAt,
	}
}

type WalletAuditResponse struct {
	UserID         uuid.UUID   `json:"user_id"`
	StoredBalance  json.Number `json:"stored_balance"`
	DerivedBalance json.Number `json:"derived_balance"`
	Credits        json.Number `json:"credits"`
	Debits         json.Number `json:"debits"`
	Consistent     bool        `json:"consistent"`
}

type NotificationResponse struct {
	ID            uuid.UUID  `json:"id"`
	Audience      string     `json:"audience"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	ReferenceID   string     `json:"reference_id,omitempty"`
	ReferenceType string     `json:"reference_type,omitempty"`
	ReadAt        *time.Time `json:"read_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newNotificationResponse(n notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		Audience:      string(n.Audience),
		RecipientID:   n.RecipientID,
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		ReadAt:        n.ReadAt,
		CreatedAt:     n.CreatedAt,
	}
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}
