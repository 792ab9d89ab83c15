package log

// Shared attribute keys for structured logging.
const (
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldEventKind = "kind"
	FieldExpenseID = "expense_id"
	FieldVendor    = "vendor"
	FieldExchange  = "exchange"
	FieldQueue     = "queue"
)
