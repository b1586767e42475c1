package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/wellness-reschedule/internal/notification"
	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

type fakeWallets struct {
	wallet *wallet.Wallet
	txs    []wallet.Transaction
	audit  *wallet.AuditResult
	limit  int
	offset int
}

func (f *fakeWallets) Balance(_ context.Context, _ uuid.UUID) (*wallet.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeWallets) Transactions(_ context.Context, _ uuid.UUID, limit, offset int) ([]wallet.Transaction, error) {
	f.limit, f.offset = limit, offset
	return f.txs, nil
}

func (f *fakeWallets) Audit(_ context.Context, _ uuid.UUID) (*wallet.AuditResult, error) {
	return f.audit, nil
}

type fakeInbox struct {
	items    []notification.Notification
	audience notification.Audience
	markErr  error
}

func (f *fakeInbox) ListForRecipient(_ context.Context, audience notification.Audience, _ uuid.UUID, _ int) ([]notification.Notification, error) {
	f.audience = audience
	return f.items, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, audience notification.Audience, _, _ uuid.UUID) error {
	f.audience = audience
	return f.markErr
}

func TestWalletEndpoints(t *testing.T) {
	userID := uuid.New()
	wallets := &fakeWallets{
		wallet: &wallet.Wallet{UserID: userID, Balance: decimal.NewFromInt(400)},
		txs: []wallet.Transaction{{
			ID:           uuid.New(),
			Type:         wallet.TypeCredit,
			Amount:       decimal.NewFromInt(400),
			BalanceAfter: decimal.NewFromInt(400),
			Category:     wallet.CategoryAppointmentRefund,
			CreatedAt:    time.Now(),
		}},
		audit: &wallet.AuditResult{
			UserID:         userID,
			StoredBalance:  decimal.NewFromInt(400),
			Credits:        decimal.NewFromInt(400),
			DerivedBalance: decimal.NewFromInt(400),
			Consistent:     true,
		},
	}
	h := NewRouter(RouterConfig{Reschedule: &fakeRescheduleService{}, Wallets: wallets})

	rec := doJSON(t, h, http.MethodGet, "/wallets/"+userID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"`+userID.String()+`","balance":400.00}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/wallets/"+userID.String()+"/transactions?limit=10&offset=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, wallets.limit)
	assert.Equal(t, 20, wallets.offset)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "appointment_refund", txs[0]["category"])

	rec = doJSON(t, h, http.MethodGet, "/wallets/"+userID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consistent":true`)

	rec = doJSON(t, h, http.MethodGet, "/wallets/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	recipient := uuid.New()
	inbox := &fakeInbox{items: []notification.Notification{{
		ID:          uuid.New(),
		Audience:    notification.AudienceProvider,
		RecipientID: recipient,
		Type:        notification.TypeRescheduleAccepted,
		Title:       "Reschedule accepted",
	}}}
	h := NewRouter(RouterConfig{Reschedule: &fakeRescheduleService{}, Inbox: inbox})

	rec := doJSON(t, h, http.MethodGet, "/notifications?audience=provider&recipientId="+recipient.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notification.AudienceProvider, inbox.audience)
	assert.Contains(t, rec.Body.String(), notification.TypeRescheduleAccepted)

	rec = doJSON(t, h, http.MethodGet, "/notifications?audience=admin&recipientId="+recipient.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/notifications/user/"+uuid.NewString()+"/read?recipientId="+recipient.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, notification.AudienceUser, inbox.audience)

	inbox.markErr = notification.ErrNotificationNotFound
	rec = doJSON(t, h, http.MethodPut, "/notifications/user/"+uuid.NewString()+"/read?recipientId="+recipient.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadinessReportsDependencies(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		checks []Check
		code   int
		status string
	}{
		{"all up", []Check{{Name: "postgres", Critical: true, Ping: up}, RedisCheck(up)}, http.StatusOK, "ok"},
		{"redis down", []Check{{Name: "postgres", Critical: true, Ping: up}, RedisCheck(down)}, http.StatusOK, "degraded"},
		{"postgres down", []Check{{Name: "postgres", Critical: true, Ping: down}, RedisCheck(up)}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Reschedule: &fakeRescheduleService{}, Checks: tt.checks, Version: "test"})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tt.code, rec.Code)
			var body ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Len(t, body.Dependencies, 2)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewRouter(RouterConfig{Reschedule: &fakeRescheduleService{}})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
