// Package protocol defines the WebSocket messages exchanged between the
// conversation view server and its browser clients.
package protocol

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> client
	TypeState     MessageType = "state"     // Full view snapshot
	TypeAmplitude MessageType = "amplitude" // Visualizer frame
	TypeError     MessageType = "error"     // Operation failure

	// Client -> server
	TypeCommand MessageType = "command" // View action

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for every WebSocket message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the payload into v.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON encoding of the message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// StateData is a snapshot of the conversation view.
type StateData struct {
	Mounted         bool           `json:"mounted"`
	Recording       bool           `json:"recording"`
	RecordLabel     string         `json:"record_label"`
	ShowTranscript  bool           `json:"show_transcript"`
	TranscriptLabel string         `json:"transcript_label"`
	Transcript      string         `json:"transcript"`
	History         []string       `json:"history"`
	Language        string         `json:"language"`
	Proficiency     string         `json:"proficiency"`
	Locale          string         `json:"locale"`
	Prompt          string         `json:"prompt"`
	Amplitude       float64        `json:"amplitude"`
	Pending         int            `json:"pending"`
	Recorded        *RecordingData `json:"recorded,omitempty"`
}

// RecordingData describes the last finalized recording.
type RecordingData struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	DurationMs int64  `json:"duration_ms"`
	Size       int64  `json:"size"`
	Locale     string `json:"locale"`
}

// AmplitudeData is one visualizer frame. Value is in [0, Max].
type AmplitudeData struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

// ErrorData reports a failed operation.
type ErrorData struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// Command actions accepted from clients.
const (
	ActionStartRecording   = "start_recording"
	ActionStopRecording    = "stop_recording"
	ActionToggleRecording  = "toggle_recording"
	ActionToggleTranscript = "toggle_transcript"
	ActionEndConversation  = "end_conversation"
	ActionBack             = "back"
)

// CommandData asks the server to perform a view action.
type CommandData struct {
	Action string `json:"action"`
}

// PingData contains ping information.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData answers a ping.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
