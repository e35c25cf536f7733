// Package conversation talks to the conversation backend: the user's
// utterance and the running history go out, the reply and the backend's
// replacement history come back.
package conversation

import "context"

// DefaultEndpoint is the backend the view talks to when none is configured.
const DefaultEndpoint = "http://127.0.0.1:5000/process"

// Request is the POST body sent to the backend.
type Request struct {
	Text                string   `json:"text"`
	ConversationHistory []string `json:"conversation_history"`
}

// NewRequest builds a request with a copy of history. A nil history is sent
// as an empty list.
func NewRequest(text string, history []string) Request {
	h := make([]string, len(history))
	copy(h, history)
	return Request{Text: text, ConversationHistory: h}
}

// Response is the backend reply. NewHistory replaces the caller's history.
type Response struct {
	Text       string   `json:"text"`
	NewHistory []string `json:"new_history"`
}

// Exchanger performs one conversational turn.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) (*Response, error)
}

// AppendTurn returns the response a backend gives when it records the user
// text followed by reply.
func AppendTurn(req Request, reply string) *Response {
	history := make([]string, 0, len(req.ConversationHistory)+2)
	history = append(history, req.ConversationHistory...)
	history = append(history, req.Text, reply)
	return &Response{Text: reply, NewHistory: history}
}
