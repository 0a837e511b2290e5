package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/tendermint"
	"likoin.network/lkn/internal/types"
)

// @Title: List Transactions
// @Route: GET /api/txs?signer=...&limit=50
// @Description: Recently delivered transactions, newest first, optionally filtered by signer
// @Response: Array of TxRecord objects
func (s *Service) HandleTxs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := s.store.RecentTxs(r.URL.Query().Get("signer"), limit)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to list transactions: %v", err))
		s.writeError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	if recs == nil {
		recs = []store.TxRecord{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

// @Title: Get Transaction
// @Route: GET /api/txs/get?id=...
// @Description: The delivery record of one transaction by its id
// @Response: TxRecord object
func (s *Service) HandleTx(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	rec, err := s.store.TxByID(id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read transaction")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// @Title: Submit Transaction
// @Route: POST /api/tx?commit=true
// @Description: Relay a signed transaction to Tendermint. With commit=true the call waits for the block
// @Response: {"request_id": "...", "hash": "...", "code": 0, "log": "...", "height": 12}
func (s *Service) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	if s.relay == nil {
		s.writeError(w, http.StatusServiceUnavailable, "transaction relay is not configured")
		return
	}

	var signedTx types.SignedTransaction
	if err := json.NewDecoder(r.Body).Decode(&signedTx); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !signedTx.Verify() {
		s.writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	tx, err := signedTx.GetTransaction()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid transaction")
		return
	}

	commit := r.URL.Query().Get("commit") == "true"
	res, err := s.relay.BroadcastSigned(r.Context(), &signedTx, commit)
	var txErr *tendermint.TxError
	switch {
	case errors.As(err, &txErr):
		s.logger.Warning(fmt.Sprintf("API: %s %s rejected with code %d", tx.Type, tx.ID, txErr.Code))
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"request_id": requestID,
			"tx":         tx.ID,
			"code":       txErr.Code,
			"error":      txErr.Log,
		})
		return
	case err != nil:
		s.logger.Error(fmt.Sprintf("API: relay of %s failed: %v", tx.ID, err))
		s.writeError(w, http.StatusBadGateway, "Failed to reach consensus node")
		return
	}

	s.logger.Info(fmt.Sprintf("API: relayed %s %s as %s", tx.Type, tx.ID, res.Hash))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"tx":         tx.ID,
		"hash":       res.Hash,
		"code":       res.Code,
		"log":        res.Log,
		"data":       json.RawMessage(orNull(res.Data)),
		"height":     res.Height,
	})
}

func orNull(b []byte) []byte {
	if len(b) == 0 || !json.Valid(b) {
		return []byte("null")
	}
	return b
}
