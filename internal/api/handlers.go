package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/reschedule"
)

type RescheduleService interface {
	Propose(ctx context.Context, in reschedule.ProposeInput) (*reschedule.Request, error)
	Respond(ctx context.Context, in reschedule.RespondInput) (*reschedule.Outcome, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*reschedule.Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]reschedule.Request, error)
	ListRefundPending(ctx context.Context, limit int) ([]appointment.Appointment, error)
	SettleRefund(ctx context.Context, appointmentID uuid.UUID) (*appointment.Appointment, error)
}

func proposeRescheduleHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProposeRescheduleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", validationMessage(err))
			return
		}

		in := reschedule.ProposeInput{
			AppointmentID: uuid.MustParse(req.AppointmentID),
			ProposedDate:  req.ProposedDate,
			ProposedTime:  req.ProposedTime,
			Reason:        req.Reason,
		}
		if req.ProviderID != "" {
			providerID := uuid.MustParse(req.ProviderID)
			in.ProviderID = &providerID
		}

		created, err := svc.Propose(r.Context(), in)
		if err != nil {
			handleProposeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ProposeRescheduleResponse{
			Success:           true,
			RescheduleRequest: newRescheduleRequestResponse(created),
		})
	}
}

func respondRescheduleHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RespondRescheduleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", validationMessage(err))
			return
		}

		out, err := svc.Respond(r.Context(), reschedule.RespondInput{
			RequestID: uuid.MustParse(req.RequestID),
			UserID:    uuid.MustParse(req.UserID),
			Action:    reschedule.Action(req.Action),
		})
		if err != nil {
			handleRespondError(w, err)
			return
		}

		if out.Action == reschedule.ActionAccept {
			writeJSON(w, http.StatusOK, RespondRescheduleResponse{
				Success: true,
				Message: "Reschedule request accepted",
			})
			return
		}

		message := "Reschedule request declined"
		if out.Refunded {
			message = "Reschedule request declined and refund processed"
		}
		writeJSON(w, http.StatusOK, RespondRescheduleResponse{
			Success:      true,
			Message:      message,
			RefundAmount: json.Number(out.RefundAmount.StringFixed(2)),
		})
	}
}

func getRescheduleHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}
		userID, err := uuid.Parse(r.URL.Query().Get("userId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userId query parameter must be a valid UUID")
			return
		}

		req, err := svc.Get(r.Context(), id, userID)
		if err != nil {
			switch {
			case errors.Is(err, reschedule.ErrRequestNotFound):
				writeError(w, http.StatusNotFound, "request_not_found", "Reschedule request not found")
				return
			case errors.Is(err, reschedule.ErrInvalidArgument):
				writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ProposeRescheduleResponse{
			Success:           true,
			RescheduleRequest: newRescheduleRequestResponse(req),
		})
	}
}

func listReschedulesHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("userId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "userId query parameter must be a valid UUID")
			return
		}

		reqs, err := svc.ListForUser(r.Context(), userID, queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := RescheduleListResponse{Success: true, Requests: make([]RescheduleRequestResponse, 0, len(reqs))}
		for i := range reqs {
			resp.Requests = append(resp.Requests, newRescheduleRequestResponse(&reqs[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleProposeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reschedule.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "Appointment not found")
	case errors.Is(err, reschedule.ErrNoPatient):
		writeError(w, http.StatusBadRequest, "no_patient", "Appointment has no associated patient")
	case errors.Is(err, reschedule.ErrPendingRequestExists):
		writeError(w, http.StatusBadRequest, "reschedule_pending", "A reschedule request is already pending")
	case errors.Is(err, appointment.ErrAppointmentInactive):
		writeError(w, http.StatusBadRequest, "appointment_inactive", "Appointment can no longer be rescheduled")
	case errors.Is(err, reschedule.ErrProposalInFlight):
		writeError(w, http.StatusConflict, "proposal_in_progress", "a reschedule for this appointment is being proposed, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleRespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reschedule.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, reschedule.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", "Reschedule request not found")
	case errors.Is(err, reschedule.ErrRequestAlreadyProcessed):
		writeError(w, http.StatusBadRequest, "already_processed", "Request already processed")
	case errors.Is(err, reschedule.ErrRequestExpired):
		writeError(w, http.StatusBadRequest, "expired", "Request has expired")
	case errors.Is(err, appointment.ErrAppointmentInactive):
		writeError(w, http.StatusBadRequest, "appointment_inactive", "Appointment is no longer active")
	case errors.Is(err, reschedule.ErrRefundFailed):
		writeError(w, http.StatusInternalServerError, "refund_pending", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
