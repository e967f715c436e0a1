package audit

import (
	"context"

	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// Audit actions for the chat service.
const (
	ActionConnect         = "chat.connect"
	ActionConnectRejected = "chat.connect_rejected"
	ActionSendMessage     = "chat.send_message"
	ActionDisconnect      = "chat.disconnect"
	ActionStartChat       = "chat.start"
	ActionDeactivate      = "chat.deactivate"
	ActionDetachSender    = "chat.detach_sender"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldRole   = "role"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger. actor is
// the owner id, or empty for visitors.
func Log(ctx context.Context, action, roomID, actor, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserID, actor).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, roomID, actor, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserID, actor).
		Str(FieldDetail, detail).
		Msg(msg)
}
