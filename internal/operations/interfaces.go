package operations

// WebSocketHub receives run progress events.
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}
