package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

// IdempotencyKeyHeader may carry the transfer idempotency key instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type decisionRequest struct {
	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
}

func (d decisionRequest) text() string {
	if d.Note != "" {
		return d.Note
	}
	return d.Reason
}

type cashRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in bank.RegisterInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.RegisterCustomer(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profile(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	status := model.AccountStatus(r.URL.Query().Get("status"))
	accts, err := s.svc.ListAccounts(r.Context(), actorFrom(r.Context()), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accts)
}

func (s *Server) openAccount(w http.ResponseWriter, r *http.Request) {
	var in bank.OpenAccountInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.svc.OpenAccount(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.GetAccount(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) statement(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.svc.AccountStatement(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var in bank.TransferInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		if in.IdempotencyKey != "" && in.IdempotencyKey != key {
			s.writeError(w, r, fmt.Errorf("%w: idempotency key in header and body differ", bank.ErrInvalidInput))
			return
		}
		in.IdempotencyKey = key
	}
	res, err := s.svc.Transfer(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.svc.ListLoans(r.Context(), actorFrom(r.Context()), model.Decision(r.URL.Query().Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) applyLoan(w http.ResponseWriter, r *http.Request) {
	var in bank.LoanInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.svc.ApplyLoan(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.svc.ListCards(r.Context(), actorFrom(r.Context()), model.Decision(r.URL.Query().Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) applyCard(w http.ResponseWriter, r *http.Request) {
	var in bank.CardInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.ApplyCard(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Admin handlers.

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cs, err := s.svc.ListCustomers(r.Context(), actorFrom(r.Context()), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCustomer(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// readDecision decodes an optional decision body. A missing body, with or
// without a Content-Length, is an empty decision.
func readDecision(w http.ResponseWriter, r *http.Request) (decisionRequest, error) {
	var d decisionRequest
	if r.ContentLength == 0 {
		return d, nil
	}
	err := decode(w, r, &d)
	if errors.Is(err, errEmptyBody) {
		return decisionRequest{}, nil
	}
	return d, err
}

func (s *Server) decideAccount(w http.ResponseWriter, r *http.Request) {
	d, err := readDecision(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, actor, vars := r.Context(), actorFrom(r.Context()), mux.Vars(r)
	id := vars["id"]

	var a model.Account
	switch vars["action"] {
	case "approve":
		a, err = s.svc.ApproveAccount(ctx, actor, id)
	case "reject":
		a, err = s.svc.RejectAccount(ctx, actor, id, d.text())
	case "freeze":
		a, err = s.svc.FreezeAccount(ctx, actor, id, d.text())
	case "unfreeze":
		a, err = s.svc.UnfreezeAccount(ctx, actor, id, d.text())
	case "close":
		a, err = s.svc.CloseAccount(ctx, actor, id, d.text())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) cashMovement(w http.ResponseWriter, r *http.Request) {
	var in cashRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, actor, vars := r.Context(), actorFrom(r.Context()), mux.Vars(r)

	var (
		tx  model.Transaction
		err error
	)
	if vars["kind"] == "deposit" {
		tx, err = s.svc.Deposit(ctx, actor, vars["id"], in.Amount, in.Description)
	} else {
		tx, err = s.svc.Withdraw(ctx, actor, vars["id"], in.Amount, in.Description)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) searchTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pageParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := store.TransactionFilter{
		AccountID: q.Get("account_id"),
		Type:      model.TransactionType(q.Get("type")),
		Reference: q.Get("reference"),
		Limit:     limit,
		Offset:    offset,
	}
	if f.From, err = parseTime(q.Get("from")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.svc.SearchTransactions(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) decideLoan(w http.ResponseWriter, r *http.Request) {
	d, err := readDecision(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, actor, vars := r.Context(), actorFrom(r.Context()), mux.Vars(r)

	var l model.Loan
	if vars["action"] == "approve" {
		l, err = s.svc.ApproveLoan(ctx, actor, vars["id"])
	} else {
		l, err = s.svc.RejectLoan(ctx, actor, vars["id"], d.text())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) decideCard(w http.ResponseWriter, r *http.Request) {
	d, err := readDecision(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, actor, vars := r.Context(), actorFrom(r.Context()), mux.Vars(r)

	var c model.CardApplication
	if vars["action"] == "approve" {
		c, err = s.svc.ApproveCard(ctx, actor, vars["id"])
	} else {
		c, err = s.svc.RejectCard(ctx, actor, vars["id"], d.text())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type verifyResponse struct {
	OK     bool          `json:"ok"`
	Report ledger.Report `json:"report"`
}

func (s *Server) verifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.VerifyLedger(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{OK: report.OK(), Report: report})
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pageParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f := store.AuditFilter{Actor: q.Get("actor"), Action: q.Get("action"), Limit: limit, Offset: offset}
	if f.Since, err = parseTime(q.Get("since")); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.ListAudit(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func pageParams(q url.Values) (limit, offset int, err error) {
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("%w: bad limit %q", bank.ErrInvalidInput, v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: bad offset %q", bank.ErrInvalidInput, v)
		}
	}
	return limit, offset, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", bank.ErrInvalidInput, v)
	}
	return t, nil
}
