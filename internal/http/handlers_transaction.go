package http

import (
	"net/http"
	"sync/atomic"
	"time"

	"saldo/internal/core"
	"saldo/internal/editmany"
	applog "saldo/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.transactions.Create(r.Context(), req.toTransaction())
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.transactionsCreated, int64(len(created)))
	s.invalidateMonths(created...)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// affected returns the stored rows a scoped mutation of id may touch, so
// their months can be invalidated after the change.
func (s *Server) affected(r *http.Request, id int64) []core.Transaction {
	tx, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		return nil
	}
	if tx.RepeatGroupID == "" {
		return []core.Transaction{tx}
	}
	group, err := s.transactions.List(r.Context(), core.Filter{GroupID: tx.RepeatGroupID})
	if err != nil {
		return []core.Transaction{tx}
	}
	return group
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope, err := parseScope(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	before := s.affected(r, id)
	updated, err := s.transactions.Update(r.Context(), id, req.toTransaction(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonths(append(before, updated...)...)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope, err := parseScope(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.transactions.Delete(r.Context(), id, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.transactionsDeleted, int64(len(deleted)))
	s.invalidateMonths(deleted...)

	resp := deleteResponse{Deleted: make([]int64, 0, len(deleted))}
	for _, tx := range deleted {
		resp.Deleted = append(resp.Deleted, tx.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var date core.Date
	if req.Date != "" {
		date, _ = core.ParseDate(req.Date)
	}
	tx, err := s.transactions.Confirm(r.Context(), id, *req.Confirmed, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonths(tx)
	writeJSON(w, http.StatusOK, tx)
}

// handleEditSummary tells the bulk edit form which fields the selection
// shares, e.g. GET /transaction/edit-many?ids=1,2,3.
func (s *Server) handleEditSummary(w http.ResponseWriter, r *http.Request) {
	ids, err := ParseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.transactions.EditSummary(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEditMany(w http.ResponseWriter, r *http.Request) {
	var req editmany.Request
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.transactions.EditMany(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Due dates may have moved anywhere.
	s.summaries.InvalidateAll()
	s.logger.InfoContext(r.Context(), "Bulk edit applied",
		applog.FieldOperation, applog.OpEditMany,
		applog.FieldCount, len(updated))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.monthSummary(r.Context(), params.Year, params.Month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Month summary error",
			applog.FieldError, err,
			applog.FieldYear, params.Year,
			applog.FieldMonth, params.Month)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
