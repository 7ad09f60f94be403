package realtime

// Message types pushed to clients.
const (
	TypeNotification  = "notification"
	TypeUserOnline    = "user_online"
	TypeUserOffline   = "user_offline"
	TypeLeadConverted = "lead_converted"
)

// Message is the JSON frame written to a connection.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EntityEvent names a CRUD broadcast such as "lead_created".
func EntityEvent(entity, verb string) string {
	return entity + "_" + verb
}
