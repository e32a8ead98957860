package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"accounter.org/internal/accounting"
	"accounter.org/internal/fault"
	"accounter.org/internal/ids"
	"accounter.org/internal/ledger"
	"accounter.org/internal/matching"
	"accounter.org/internal/store"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 200
)

type matchesResponse struct {
	AnchorID   string                    `json:"anchor_id"`
	Candidates []matching.MatchCandidate `json:"candidates"`
}

type regenerateResponse struct {
	ChargeID string               `json:"charge_id"`
	Entries  []ledger.LedgerEntry `json:"entries"`
}

type balanceResponse struct {
	ChargeID string               `json:"charge_id"`
	Entries  []ledger.LedgerEntry `json:"entries"`
	Balance  ledger.BalanceInfo   `json:"balance"`
}

func (a *API) TransactionMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction")
	if !ok {
		return
	}
	limit, minConf, ok := matchParams(w, r)
	if !ok {
		return
	}
	cands, err := a.svc.MatchTransaction(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{AnchorID: id, Candidates: trimCandidates(cands, minConf, limit)})
}

func (a *API) DocumentMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "document")
	if !ok {
		return
	}
	limit, minConf, ok := matchParams(w, r)
	if !ok {
		return
	}
	cands, err := a.svc.MatchDocument(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{AnchorID: id, Candidates: trimCandidates(cands, minConf, limit)})
}

// ValidateLedger returns the freshly generated ledger and its diff against storage.
func (a *API) ValidateLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "charge")
	if !ok {
		return
	}
	v, err := a.svc.ValidateLedger(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RegenerateLedger rebuilds and persists a charge's ledger; locked charges get 409.
func (a *API) RegenerateLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "charge")
	if !ok {
		return
	}
	entries, err := a.svc.RegenerateLedger(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, regenerateResponse{ChargeID: id, Entries: entries})
}

func (a *API) ChargeLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "charge")
	if !ok {
		return
	}
	state, err := a.svc.IsChargeLocked(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) BalanceCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "charge")
	if !ok {
		return
	}
	entries, info, err := a.svc.GenerateBalanceCharge(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{ChargeID: id, Entries: entries, Balance: info})
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	id, err := ids.ParseUUID(kind, r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s id", kind))
		return "", false
	}
	return id, true
}

func matchParams(w http.ResponseWriter, r *http.Request) (int, float64, bool) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), defaultMatchLimit, 1, maxMatchLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	var minConf float64
	if raw := strings.TrimSpace(q.Get("min_confidence")); raw != "" {
		minConf, err = strconv.ParseFloat(raw, 64)
		if err != nil || minConf < 0 || minConf > 1 {
			writeError(w, r, http.StatusBadRequest, "min_confidence must be between 0 and 1")
			return 0, 0, false
		}
	}
	return limit, minConf, true
}

func trimCandidates(cands []matching.MatchCandidate, minConf float64, limit int) []matching.MatchCandidate {
	if minConf > 0 {
		cands = matching.FilterAbove(cands, minConf)
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}
	if cands == nil {
		cands = []matching.MatchCandidate{}
	}
	return cands
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, fmt.Errorf("limit must be between %d and %d", min, max)
	}
	return val, nil
}

// handleServiceError maps accounting failures onto status codes by error class.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, accounting.ErrChargeLocked):
		writeFault(w, r, http.StatusConflict, err)
		return
	}
	switch fault.ClassOf(err) {
	case fault.Validation:
		writeFault(w, r, http.StatusBadRequest, err)
	case fault.Data:
		writeFault(w, r, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeFault(w http.ResponseWriter, r *http.Request, code int, err error) {
	payload := map[string]any{
		"error": err.Error(),
		"kind":  fault.NameOf(err),
		"class": fault.ClassOf(err).String(),
	}
	var fe *fault.Error
	if errors.As(err, &fe) && len(fe.Fields) > 0 {
		payload["fields"] = fe.Fields
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
