// Package web serves the conversation view to a browser shell: a JSON API for
// the view controls, the last recording, and a websocket feed of state and
// amplitude frames.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lingua/pkg/hub"
	"github.com/teslashibe/go-lingua/pkg/protocol"
	"github.com/teslashibe/go-lingua/pkg/view"
	"github.com/teslashibe/go-lingua/pkg/visual"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithStaticDir serves the browser shell from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the view server.
type Server struct {
	app       *fiber.App
	addr      string
	staticDir string
	view      *view.View
	hub       *hub.Hub
	logger    *slog.Logger

	baseCtx     context.Context
	unsubscribe func()
}

// NewServer creates a server for v and subscribes its feed to v's changes.
func NewServer(v *view.View, opts ...Option) *Server {
	s := &Server{
		addr:    DefaultAddr,
		view:    v,
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.hub = hub.New("view", hub.WithLogger(s.logger))

	app := fiber.New(fiber.Config{
		AppName:               "go-lingua",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/catalog", s.handleCatalog)
	api.Post("/session", s.handleMount)
	api.Delete("/session", s.handleUnmount)
	api.Post("/recording/start", s.handleStartRecording)
	api.Post("/recording/stop", s.handleStopRecording)
	api.Post("/recording/toggle", s.handleToggleRecording)
	api.Get("/recording", s.handleRecording)
	api.Post("/transcript/toggle", s.handleToggleTranscript)
	api.Post("/conversation/end", s.handleEndConversation)
	api.Post("/back", s.handleBack)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/view", websocket.New(s.handleViewWS))

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	s.app = app
	s.unsubscribe = v.Subscribe(s.publish)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the websocket fan-out.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.baseCtx = ctx
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("view server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.unsubscribe()
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return err
		}
		return nil
	}
}

// ctx is the context websocket commands run under.
func (s *Server) ctx() context.Context {
	return s.baseCtx
}

// publish forwards view changes to websocket clients.
func (s *Server) publish(c view.Change) {
	if !s.hub.IsRunning() {
		return
	}

	var (
		msg *protocol.Message
		err error
	)
	switch c.Kind {
	case view.ChangeAmplitude:
		msg, err = protocol.NewAmplitudeMessage(c.State.Amplitude, visual.MaxAmplitude)
	default:
		msg, err = protocol.NewStateMessage(stateData(c.State))
	}
	if err != nil {
		s.logger.Error("encode view change", "error", err)
		return
	}
	s.broadcast(msg)
}

func (s *Server) broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}
	s.hub.Broadcast(hub.NewJSONMessage(data))
}

// handleError renders errors as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// stateData maps a view snapshot to its wire form.
func stateData(st view.State) protocol.StateData {
	d := protocol.StateData{
		Mounted:         st.Mounted,
		Recording:       st.Recording,
		RecordLabel:     st.RecordLabel,
		ShowTranscript:  st.ShowTranscript,
		TranscriptLabel: st.TranscriptLabel,
		Transcript:      st.Transcript,
		History:         st.History,
		Language:        string(st.Language),
		Proficiency:     string(st.Proficiency),
		Locale:          st.Locale,
		Prompt:          st.Prompt,
		Amplitude:       st.Amplitude,
		Pending:         st.Pending,
	}
	if d.History == nil {
		d.History = []string{}
	}
	if r := st.Recorded; r != nil {
		d.Recorded = &protocol.RecordingData{
			ID:         r.ID,
			URL:        "/api/recording",
			DurationMs: r.Duration.Milliseconds(),
			Size:       r.Size,
			Locale:     r.Locale,
		}
	}
	return d
}
