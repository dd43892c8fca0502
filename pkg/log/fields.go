package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Domain
	FieldUnitID     = "unit_id"
	FieldPropertyID = "property_id"
	FieldUnitTypeID = "unit_type_id"
	FieldBookingID  = "booking_id"
	FieldIndex      = "index"

	// Service
	FieldService = "service"
)
