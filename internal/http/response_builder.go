package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/validator"
)

// errMalformed marks requests that could not be decoded at all.
var errMalformed = errors.New("malformed request")

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	data       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response. A 204 carries no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent || b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	body, err := json.Marshal(b.data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// StatusFor maps an error returned by a service call to an HTTP status.
func StatusFor(err error) int {
	var verrs validator.Errors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest
	case errors.As(err, &verrs), errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrVersionConflict), errors.Is(err, core.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorDetails flattens validation failures into one message per problem.
func errorDetails(err error) []string {
	var verrs validator.Errors
	if errors.As(err, &verrs) {
		return verrs
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if inner != services.ErrValidation {
					walk(inner)
				}
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}

// ErrorResponse builds the response for err. Server errors are logged and
// their details withheld from the client.
func ErrorResponse(ctx context.Context, err error) *JSONResponseBuilder {
	status := StatusFor(err)
	body := ErrorBody{Message: err.Error()}
	switch status {
	case http.StatusUnprocessableEntity:
		body.Message = "validation failed"
		body.Errors = errorDetails(err)
	case http.StatusInternalServerError, http.StatusGatewayTimeout:
		applog.FromContext(ctx).Failure(ctx, "Request failed", err)
		body.Message = http.StatusText(status)
	}
	return NewJSONResponse().Status(status).Data(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(r.Context(), err).Write(w)
}
