package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/wellness-reschedule/internal/notification"
)

type Inbox interface {
	ListForRecipient(ctx context.Context, audience notification.Audience, recipientID uuid.UUID, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, audience notification.Audience, id, recipientID uuid.UUID) error
}

func listNotificationsHandler(inbox Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		recipientID, err := uuid.Parse(q.Get("recipientId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_recipient_id", "recipientId must be a valid UUID")
			return
		}

		audience := notification.Audience(q.Get("audience"))
		if audience == "" {
			audience = notification.AudienceUser
		}
		if !audience.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_audience", "audience must be user or provider")
			return
		}

		limit := queryInt(r, "limit", 50)
		if limit == 0 || limit > 200 {
			limit = 50
		}

		items, err := inbox.ListForRecipient(r.Context(), audience, recipientID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]NotificationResponse, 0, len(items))
		for _, n := range items {
			resp = append(resp, newNotificationResponse(n))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func markNotificationReadHandler(inbox Inbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audience := notification.Audience(chi.URLParam(r, "audience"))
		if !audience.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_audience", "audience must be user or provider")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
			return
		}

		recipientID, err := uuid.Parse(r.URL.Query().Get("recipientId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_recipient_id", "recipientId must be a valid UUID")
			return
		}

		if err := inbox.MarkRead(r.Context(), audience, id, recipientID); err != nil {
			if errors.Is(err, notification.ErrNotificationNotFound) {
				writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
