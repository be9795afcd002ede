package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/ledger"
)

// resource adapts one ledger kind's balance service to HTTP. The key
// plumbing funcs are closed over at construction so the handlers stay
// generic across cash (no key) and coded (bank/drug) ledgers.
type resource[K ledger.Key] struct {
	kind ledger.Kind
	svc  BalanceService[K]
	// codeOf renders the key for responses; empty string is omitted.
	codeOf func(K) string
	// keyFromBody picks the kind's key field out of the request body.
	keyFromBody func(upsertBalanceRequest) K
	// keyFromQuery resolves the key for point reads and deletes.
	keyFromQuery func(url.Values) (K, error)
	// keyFilter resolves the optional account filter for listings.
	keyFilter func(url.Values) *K
	// display renders monetary amounts; nil for unitless ledgers.
	display func(decimal.Decimal) string
	log     *slog.Logger
}

func cashResource(svc BalanceService[ledger.CashKey], currency string, log *slog.Logger) *resource[ledger.CashKey] {
	return &resource[ledger.CashKey]{
		kind:         ledger.KindCash,
		svc:          svc,
		codeOf:       func(ledger.CashKey) string { return "" },
		keyFromBody:  func(upsertBalanceRequest) ledger.CashKey { return ledger.CashKey{} },
		keyFromQuery: func(url.Values) (ledger.CashKey, error) { return ledger.CashKey{}, nil },
		keyFilter:    func(url.Values) *ledger.CashKey { return nil },
		display:      moneyDisplay(currency),
		log:          log,
	}
}

func codedResource(kind ledger.Kind, svc BalanceService[string], param string, display func(decimal.Decimal) string, log *slog.Logger) *resource[string] {
	return &resource[string]{
		kind:   kind,
		svc:    svc,
		codeOf: func(code string) string { return code },
		keyFromBody: func(req upsertBalanceRequest) string {
			if param == "drug_code" {
				return strings.TrimSpace(req.DrugCode)
			}
			return strings.TrimSpace(req.AccountCode)
		},
		keyFromQuery: func(q url.Values) (string, error) {
			code := strings.TrimSpace(q.Get(param))
			if code == "" {
				return "", missingParamErr(param)
			}
			return code, nil
		},
		keyFilter: func(q url.Values) *string {
			if code := strings.TrimSpace(q.Get(param)); code != "" {
				return &code
			}
			return nil
		},
		display: display,
		log:     log,
	}
}

// moneyDisplay renders a decimal balance in the given ISO-4217 currency.
func moneyDisplay(currency string) func(decimal.Decimal) string {
	return func(d decimal.Decimal) string {
		minor := d.Round(2).Shift(2).IntPart()
		amt, err := money.NewAmountFromMinorUnits(currency, minor)
		if err != nil {
			return ""
		}
		return amt.String()
	}
}

func (res *resource[K]) toResponse(rec ledger.Record[K]) balanceResponse {
	out := balanceResponse{
		Date:        rec.Date,
		AccountCode: res.codeOf(rec.Account),
		Amount:      rec.Amount,
		Year:        rec.Year,
		Month:       rec.Month,
	}
	if res.display != nil {
		out.AmountDisplay = res.display(rec.Amount)
	}
	return out
}

func (res *resource[K]) decodeUpsert(w http.ResponseWriter, r *http.Request) (upsertBalanceRequest, bool) {
	var req upsertBalanceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return req, false
	}
	if req.Amount == nil {
		badRequest(w, "amount is required")
		return req, false
	}
	if req.Date.IsZero() {
		badRequest(w, "date is required")
		return req, false
	}
	return req, true
}

// create handles POST: assert a balance, creating the day if absent, and
// cascade it through year end.
func (res *resource[K]) create(w http.ResponseWriter, r *http.Request) {
	req, ok := res.decodeUpsert(w, r)
	if !ok {
		return
	}
	key := res.keyFromBody(req)
	opID := uuid.New()
	result, err := res.svc.Assert(r.Context(), key, req.Date, *req.Amount)
	if err != nil {
		observeAssertion(res.kind, "error", 0)
		writeServiceErr(w, err)
		return
	}
	observeAssertion(res.kind, "ok", result.DatesTouched)
	res.log.Info("balance asserted",
		"kind", string(res.kind), "op_id", opID.String(),
		"date", req.Date.String(), "dates_touched", result.DatesTouched)
	toJSON(w, http.StatusCreated, assertResponse{
		OpID:         opID,
		DatesTouched: result.DatesTouched,
		Cascaded:     result.Cascaded,
		Record:       res.toResponse(ledger.NewRecord(key, req.Date, *req.Amount)),
	})
}

// update handles PUT: correct an existing day's balance with the same
// cascade; 404 when the day was never asserted.
func (res *resource[K]) update(w http.ResponseWriter, r *http.Request) {
	req, ok := res.decodeUpsert(w, r)
	if !ok {
		return
	}
	key := res.keyFromBody(req)
	opID := uuid.New()
	result, err := res.svc.Reassert(r.Context(), key, req.Date, *req.Amount)
	if err != nil {
		observeAssertion(res.kind, "error", 0)
		writeServiceErr(w, err)
		return
	}
	observeAssertion(res.kind, "ok", result.DatesTouched)
	res.log.Info("balance corrected",
		"kind", string(res.kind), "op_id", opID.String(),
		"date", req.Date.String(), "dates_touched", result.DatesTouched)
	toJSON(w, http.StatusOK, assertResponse{
		OpID:         opID,
		DatesTouched: result.DatesTouched,
		Cascaded:     result.Cascaded,
		Record:       res.toResponse(ledger.NewRecord(key, req.Date, *req.Amount)),
	})
}

// get handles GET /{date}: point read.
func (res *resource[K]) get(w http.ResponseWriter, r *http.Request) {
	d, err := date.Parse(chi.URLParam(r, "date"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	key, err := res.keyFromQuery(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := res.svc.Get(r.Context(), key, d)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, res.toResponse(rec))
}

// list handles GET: filtered listing ordered by date descending.
func (res *resource[K]) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter[K]{Account: res.keyFilter(q)}
	var bad string
	f.From, bad = dateParam(q, "date_from", bad)
	f.To, bad = dateParam(q, "date_to", bad)
	f.Year, bad = intParam(q, "year", bad)
	f.Month, bad = intParam(q, "month", bad)
	if bad != "" {
		badRequest(w, bad)
		return
	}
	recs, err := res.svc.List(r.Context(), f)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	items := make([]balanceResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, res.toResponse(rec))
	}
	toJSON(w, http.StatusOK, listBalancesResponse{Items: items})
}

// remove handles DELETE /{date}: single record, no cascade.
func (res *resource[K]) remove(w http.ResponseWriter, r *http.Request) {
	d, err := date.Parse(chi.URLParam(r, "date"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	key, err := res.keyFromQuery(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	deleted, err := res.svc.Delete(r.Context(), key, d)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	if !deleted {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dateParam(q url.Values, name, bad string) (*date.Date, string) {
	if bad != "" {
		return nil, bad
	}
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, ""
	}
	d, err := date.Parse(raw)
	if err != nil {
		return nil, "invalid " + name
	}
	return &d, ""
}

func intParam(q url.Values, name, bad string) (*int, string) {
	if bad != "" {
		return nil, bad
	}
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, "invalid " + name
	}
	return &n, ""
}

func missingParamErr(param string) error {
	return &paramError{param: param}
}

type paramError struct{ param string }

func (e *paramError) Error() string { return e.param + " is required" }
