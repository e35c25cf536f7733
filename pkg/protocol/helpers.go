package protocol

import "time"

// NewStateMessage creates a state snapshot message.
func NewStateMessage(state StateData) (*Message, error) {
	if state.History == nil {
		state.History = []string{}
	}
	return NewMessage(TypeState, state)
}

// NewAmplitudeMessage creates a visualizer frame message.
func NewAmplitudeMessage(value, max float64) (*Message, error) {
	return NewMessage(TypeAmplitude, AmplitudeData{Value: value, Max: max})
}

// NewErrorMessage reports a failed operation.
func NewErrorMessage(op string, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Op: op, Message: err.Error()})
}

// NewCommandMessage creates a client command.
func NewCommandMessage(action string) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Action: action})
}

// NewPingMessage creates a ping.
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage answers ping.
func NewPongMessage(ping PingData) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        ping.ID,
		PingTS:    ping.Timestamp,
		PongTS:    now,
		LatencyMs: now - ping.Timestamp,
	})
}
