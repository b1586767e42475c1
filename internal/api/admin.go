package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/wellness-reschedule/internal/appointment"
	"github.com/hackgods/wellness-reschedule/internal/reschedule"
)

func listPendingRefundsHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListRefundPending(r.Context(), queryInt(r, "limit", 100))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, newAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func settleRefundHandler(svc RescheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "appointmentId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentId must be a valid UUID")
			return
		}

		appt, err := svc.SettleRefund(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, appointment.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "appointment_not_found", "Appointment not found")
			case errors.Is(err, appointment.ErrRefundNotPending):
				writeError(w, http.StatusConflict, "refund_not_pending", err.Error())
			case errors.Is(err, reschedule.ErrNoPatient):
				writeError(w, http.StatusBadRequest, "no_patient", "Appointment has no associated patient")
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}
