package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor, shared with pkg/middleware context keys.
	FieldUserID = "user_id"

	// Chat
	FieldRoomID     = "room_id"
	FieldSessionID  = "session_id"
	FieldMessageID  = "message_id"
	FieldSenderType = "sender_type"
	FieldInstanceID = "instance_id"

	FieldService = "service"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
