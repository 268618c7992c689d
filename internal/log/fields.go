package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldCategory   = "category"
	FieldPowerWatts = "power_watts"
	FieldHours      = "hours_per_day"
	FieldPrice      = "price_per_unit"
	FieldEnergyKWh  = "energy_kwh"
	FieldCost       = "cost"
	FieldEntries    = "entries"
	FieldCategories = "categories"
	FieldBackend    = "backend"
)

// Component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSession   = "session"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
	ComponentRateLimit = "rate_limit"
)

// Operation names
const (
	OpSubmit   = "submit"
	OpDraft    = "draft"
	OpReset    = "reset"
	OpRender   = "render"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields builds key/value pairs for slog calls.
type Fields map[string]any

// NewFields creates an empty field set.
func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithSession(id string) Fields {
	f[FieldSessionID] = id
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message when err is non-nil.
func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithEntry adds the attributes of an appliance entry.
func (f Fields) WithEntry(category string, powerWatts, hours, price float64) Fields {
	f[FieldCategory] = category
	f[FieldPowerWatts] = powerWatts
	f[FieldHours] = hours
	f[FieldPrice] = price
	return f
}

// ToSlice converts the fields to alternating key/value arguments.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
