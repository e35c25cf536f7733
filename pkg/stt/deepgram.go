package stt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// DeepgramURL is the streaming recognition endpoint.
const DeepgramURL = "wss://api.deepgram.com/v1/listen"

// DefaultFlushTimeout bounds how long Close waits for the final results.
const DefaultFlushTimeout = 2 * time.Second

// DeepgramOption configures a Deepgram client.
type DeepgramOption func(*Deepgram)

// WithDeepgramURL overrides the endpoint, mainly for tests.
func WithDeepgramURL(u string) DeepgramOption {
	return func(d *Deepgram) {
		d.url = u
	}
}

// WithDeepgramModel selects the recognition model.
func WithDeepgramModel(model string) DeepgramOption {
	return func(d *Deepgram) {
		d.model = model
	}
}

// WithDeepgramFlushTimeout sets how long Close waits for the server to flush
// pending results after CloseStream.
func WithDeepgramFlushTimeout(d time.Duration) DeepgramOption {
	return func(dg *Deepgram) {
		dg.flushTimeout = d
	}
}

// WithDeepgramLogger sets the structured logger.
func WithDeepgramLogger(logger *slog.Logger) DeepgramOption {
	return func(d *Deepgram) {
		d.logger = logger
	}
}

// Deepgram is a streaming Client for the Deepgram live API.
type Deepgram struct {
	apiKey       string
	url          string
	model        string
	flushTimeout time.Duration
	logger       *slog.Logger
	dialer       websocket.Dialer

	cbMu     sync.RWMutex
	callback TranscriptCallback

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{} // closed by Close
	finished  chan struct{} // closed when readLoop exits
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// NewDeepgram creates a Deepgram client.
func NewDeepgram(apiKey string, opts ...DeepgramOption) *Deepgram {
	d := &Deepgram{
		apiKey:       apiKey,
		url:          DeepgramURL,
		model:        "nova-2",
		flushTimeout: DefaultFlushTimeout,
		logger:       slog.Default(),
		dialer:       websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "stt.deepgram")
	return d
}

// OnTranscript sets the segment callback.
func (d *Deepgram) OnTranscript(cb TranscriptCallback) {
	d.cbMu.Lock()
	d.callback = cb
	d.cbMu.Unlock()
}

// Connect opens the streaming session.
func (d *Deepgram) Connect(ctx context.Context, opts Options) error {
	if d.apiKey == "" {
		return ErrNoAPIKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return nil
	}

	u, err := url.Parse(d.url)
	if err != nil {
		return fmt.Errorf("stt: deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("channels", strconv.Itoa(opts.Channels))
	q.Set("punctuate", "true")
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if d.model != "" {
		q.Set("model", d.model)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, _, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("stt: deepgram connect: %w", err)
	}

	d.conn = conn
	d.connected = true
	d.done = make(chan struct{})
	d.finished = make(chan struct{})
	go d.readLoop(conn, d.done, d.finished)

	d.logger.Info("connected", "language", opts.Language, "sample_rate", opts.SampleRate)
	return nil
}

func (d *Deepgram) readLoop(conn *websocket.Conn, done, finished chan struct{}) {
	defer func() {
		d.mu.Lock()
		if d.conn == conn {
			d.conn = nil
			d.connected = false
		}
		d.mu.Unlock()
		conn.Close()
		close(finished)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					d.logger.Warn("read failed", "error", err)
				}
			}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			d.logger.Debug("skip undecodable message", "error", err)
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}

		d.cbMu.RLock()
		cb := d.callback
		d.cbMu.RUnlock()
		if cb != nil {
			cb(msg.Channel.Alternatives[0].Transcript, msg.IsFinal)
		}
	}
}

// SendAudio streams PCM16 audio.
func (d *Deepgram) SendAudio(pcm []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected || d.conn == nil {
		return ErrNotConnected
	}
	return d.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Close asks the server to flush, waits up to the flush timeout for the
// final results and closes the connection.
func (d *Deepgram) Close() error {
	d.mu.Lock()
	conn, finished := d.conn, d.finished
	if conn == nil {
		d.mu.Unlock()
		return nil
	}
	close(d.done)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		d.logger.Debug("close stream", "error", err)
	}
	d.conn = nil
	d.connected = false
	d.mu.Unlock()

	// readLoop takes d.mu on exit, so wait unlocked.
	timer := time.NewTimer(d.flushTimeout)
	defer timer.Stop()
	select {
	case <-finished:
		d.logger.Info("disconnected")
		return nil
	case <-timer.C:
		d.logger.Debug("flush timed out")
	}

	err := conn.Close()
	<-finished
	d.logger.Info("disconnected")
	return err
}

// IsConnected reports whether the stream is open.
func (d *Deepgram) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

var _ Client = (*Deepgram)(nil)
