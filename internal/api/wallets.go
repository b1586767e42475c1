package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/wellness-reschedule/internal/wallet"
)

type WalletReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]wallet.Transaction, error)
	Audit(ctx context.Context, userID uuid.UUID) (*wallet.AuditResult, error)
}

func walletUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "userId must be a valid UUID")
		return uuid.Nil, false
	}
	return userID, true
}

func getWalletHandler(wallets WalletReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := walletUserID(w, r)
		if !ok {
			return
		}

		wal, err := wallets.Balance(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, WalletResponse{
			UserID:  userID,
			Balance: json.Number(wal.Balance.StringFixed(2)),
		})
	}
}

func listWalletTransactionsHandler(wallets WalletReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := walletUserID(w, r)
		if !ok {
			return
		}

		txs, err := wallets.Transactions(r.Context(), userID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]WalletTransactionResponse, 0, len(txs))
		for _, t := range txs {
			resp = append(resp, newWalletTransactionResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func auditWalletHandler(wallets WalletReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := walletUserID(w, r)
		if !ok {
			return
		}

		res, err := wallets.Audit(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, WalletAuditResponse{
			UserID:         res.UserID,
			StoredBalance:  json.Number(res.StoredBalance.StringFixed(2)),
			DerivedBalance: json.Number(res.DerivedBalance.StringFixed(2)),
			Credits:        json.Number(res.Credits.StringFixed(2)),
			Debits:         json.Number(res.Debits.StringFixed(2)),
			Consistent:     res.Consistent,
		})
	}
}
