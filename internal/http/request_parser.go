package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/validator"
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing
// values default to the month of now; present ones must be valid.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return params, fmt.Errorf("%w: invalid year %q", errMalformed, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return params, fmt.Errorf("%w: invalid month %q", errMalformed, v)
		}
		params.Month = m
	}

	return params, nil
}

// pathID parses the named path wildcard as a positive id.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errMalformed, name, raw)
	}
	return id, nil
}

// ParseIDs parses a comma separated list of positive ids.
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid id %q", errMalformed, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// decodeJSON reads at most limit bytes of JSON into dst and validates it.
// Decoding failures are malformed requests; rule failures are validation
// errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformed)
		}
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", errMalformed)
	}
	return validator.Struct(dst)
}

// filterQuery mirrors the list and export query string.
type filterQuery struct {
	Type       string `query:"type" validate:"omitempty,oneof=income expense"`
	AccountID  string `query:"accountId" validate:"omitempty,number"`
	CategoryID string `query:"categoryId" validate:"omitempty,number"`
	Confirmed  string `query:"confirmed" validate:"omitempty,oneof=true false"`
	From       string `query:"from" validate:"omitempty,isodate"`
	To         string `query:"to" validate:"omitempty,isodate"`
}

// ParseFilter builds a transaction filter from query parameters.
func ParseFilter(q url.Values) (core.Filter, error) {
	fq := filterQuery{
		Type:       strings.TrimSpace(q.Get("type")),
		AccountID:  strings.TrimSpace(q.Get("accountId")),
		CategoryID: strings.TrimSpace(q.Get("categoryId")),
		Confirmed:  strings.TrimSpace(q.Get("confirmed")),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
	}
	if err := validator.Struct(fq); err != nil {
		return core.Filter{}, err
	}

	f := core.Filter{Type: core.TransactionType(fq.Type)}
	if fq.AccountID != "" {
		f.AccountID, _ = strconv.ParseInt(fq.AccountID, 10, 64)
	}
	if fq.CategoryID != "" {
		f.CategoryID, _ = strconv.ParseInt(fq.CategoryID, 10, 64)
	}
	if fq.Confirmed != "" {
		confirmed := fq.Confirmed == "true"
		f.Confirmed = &confirmed
	}
	if fq.From != "" {
		f.From, _ = core.ParseDate(fq.From)
	}
	if fq.To != "" {
		f.To, _ = core.ParseDate(fq.To)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return core.Filter{}, validator.Errors{"to must not be before from"}
	}
	return f, nil
}

// parseScope reads the group scope of an update or delete.
func parseScope(q url.Values) (services.Scope, error) {
	scope, err := services.ParseScope(q.Get("scope"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errMalformed, err)
	}
	return scope, nil
}
