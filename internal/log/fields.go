package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUser          = "user"
	FieldRole          = "role"
	FieldModule        = "module"
	FieldPermission    = "permission"
	FieldDepartment    = "department"
	FieldPeriod        = "period"
	FieldAmount        = "amount"
	FieldType          = "type"
	FieldCategory      = "category"
	FieldArticle       = "article"
	FieldSubArticle    = "sub_article"
	FieldRef           = "ref"
	FieldFile          = "file"
	FieldCount         = "count"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentSession     = "session"
	ComponentBudget      = "budget"
	ComponentUsers       = "users"
	ComponentReports     = "reports"
	ComponentCredentials = "credentials"
	ComponentStorage     = "storage"
	ComponentSheets      = "sheets"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
	ComponentBackend     = "backend"
	ComponentTemplate    = "template"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpList     = "list"
	OpAppend   = "append"
	OpLoad     = "load"
	OpSave     = "save"
	OpRecover  = "recover"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRename   = "rename"
	OpSync     = "sync"
	OpValidate = "validate"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeStorage       = "storage_error"
	ErrorTypeCorruption    = "corruption_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeForbidden     = "forbidden_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the acting user
func (f LogFields) WithUser(user string) LogFields {
	f[FieldUser] = user
	return f
}

// WithTransaction adds transaction fields. Amount is passed preformatted.
func (f LogFields) WithTransaction(period, category, article, subArticle, amount, typ, department string) LogFields {
	f[FieldPeriod] = period
	f[FieldCategory] = category
	f[FieldArticle] = article
	f[FieldSubArticle] = subArticle
	f[FieldAmount] = amount
	f[FieldType] = typ
	f[FieldDepartment] = department
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
