package service

// Event types sent to clients.
const (
	EventBattleStarted  = "battle_started"
	EventBattleFinished = "battle_finished"
	EventEngine         = "event"
	EventUpkeep         = "upkeep"
	EventTurnStarted    = "turn_started"
	EventGameFinished   = "game_finished"
	EventGameLoaded     = "game_loaded"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastGameEvent(gameID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastGameEvent(string, string, any) {}
