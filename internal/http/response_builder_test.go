package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/validator"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Data(map[string]int{"id": 7}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q, want 'value'", got)
	}
	if w.Body.String() != "{\"id\":7}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Data("ignored").Write(w)
	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed", fmt.Errorf("%w: bad json", errMalformed), http.StatusBadRequest},
		{"validator errors", validator.Errors{"name is required"}, http.StatusUnprocessableEntity},
		{"service validation", fmt.Errorf("%w: %w", services.ErrValidation, core.ErrInvalidValue), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("transaction 3: %w", core.ErrNotFound), http.StatusNotFound},
		{"version conflict", core.ErrVersionConflict, http.StatusConflict},
		{"in use", core.ErrInUse, http.StatusConflict},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%q)", err, w.Body.String())
	}
	return body
}

func TestErrorResponse_ValidationListsEveryProblem(t *testing.T) {
	err := fmt.Errorf("%w: %w", services.ErrValidation, errors.Join(
		fmt.Errorf("line 2: %w", core.ErrInvalidValue),
		fmt.Errorf("line 5: %w", core.ErrMissingAccount),
	))
	w := httptest.NewRecorder()
	ErrorResponse(context.Background(), err).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Status code = %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Message != "validation failed" {
		t.Errorf("Message = %q", body.Message)
	}
	if len(body.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2 entries", body.Errors)
	}
	if body.Errors[0] != "line 2: value must be greater than zero" {
		t.Errorf("Errors[0] = %q", body.Errors[0])
	}
}

func TestErrorResponse_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(context.Background(), errors.New("sqlite: database is locked")).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Status code = %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != "Internal Server Error" {
		t.Errorf("Message = %q, want the generic status text", body.Message)
	}
}

func TestErrorResponse_NotFoundKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(context.Background(), fmt.Errorf("account 9: %w", core.ErrNotFound)).Write(w)
	if body := decodeError(t, w); body.Message != "account 9: not found" {
		t.Errorf("Message = %q", body.Message)
	}
}
