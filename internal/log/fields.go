package log

import "net/http"

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldUserAgent     = "user_agent"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldTransactionID = "transaction_id"
	FieldCount         = "count"
	FieldFormat        = "format"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWorker    = "worker"
	ComponentRecurring = "recurring"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

const (
	OpEditMany = "edit_many"
	OpImport   = "import"
	OpExport   = "export"
)

// Attrs is an ordered key/value list ready to pass to slog.
type Attrs []any

func (a Attrs) Add(key string, value any) Attrs {
	return append(a, key, value)
}

// AddIf appends key only when value is not the zero string.
func (a Attrs) AddIf(key, value string) Attrs {
	if value == "" {
		return a
	}
	return append(a, key, value)
}

func (a Attrs) Err(err error) Attrs {
	if err == nil {
		return a
	}
	return append(a, FieldError, err.Error())
}

// RequestAttrs describes r for access logs.
func RequestAttrs(r *http.Request) Attrs {
	return Attrs{FieldMethod, r.Method, FieldPath, r.URL.Path}.
		AddIf(FieldQuery, r.URL.RawQuery)
}
