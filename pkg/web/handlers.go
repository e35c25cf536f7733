package web

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/catalog"
	"github.com/teslashibe/go-lingua/pkg/hub"
	"github.com/teslashibe/go-lingua/pkg/protocol"
	"github.com/teslashibe/go-lingua/pkg/view"
)

// CatalogResponse lists the choices of the settings screen.
type CatalogResponse struct {
	Languages     []catalog.LanguageEntry    `json:"languages"`
	Proficiencies []catalog.ProficiencyEntry `json:"proficiencies"`
}

// BackResponse tells the shell where to navigate.
type BackResponse struct {
	Location string `json:"location"`
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleCatalog(c *fiber.Ctx) error {
	cat := s.view.Catalog()
	return c.JSON(CatalogResponse{
		Languages:     cat.Languages(),
		Proficiencies: cat.Proficiencies(),
	})
}

func (s *Server) handleMount(c *fiber.Ctx) error {
	var sel *catalog.Selection
	if len(c.Body()) > 0 {
		sel = &catalog.Selection{}
		if err := c.BodyParser(sel); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid selection: "+err.Error())
		}
	}
	s.view.Mount(sel)
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleUnmount(c *fiber.Ctx) error {
	s.view.Unmount()
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleStartRecording(c *fiber.Ctx) error {
	if err := s.view.StartRecording(c.UserContext()); err != nil {
		return s.opError("start_recording", err)
	}
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleStopRecording(c *fiber.Ctx) error {
	if err := s.view.StopRecording(c.UserContext()); err != nil {
		return s.opError("stop_recording", err)
	}
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleToggleRecording(c *fiber.Ctx) error {
	if err := s.view.ToggleRecording(c.UserContext()); err != nil {
		return s.opError("toggle_recording", err)
	}
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleToggleTranscript(c *fiber.Ctx) error {
	s.view.ToggleTranscript()
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleEndConversation(c *fiber.Ctx) error {
	s.view.EndConversation()
	return c.JSON(stateData(s.view.Snapshot()))
}

func (s *Server) handleBack(c *fiber.Ctx) error {
	return c.JSON(BackResponse{Location: s.view.Back()})
}

// handleRecording serves the last finalized recording.
func (s *Server) handleRecording(c *fiber.Ctx) error {
	a := s.view.Artifact()
	if a == nil {
		return fiber.NewError(fiber.StatusNotFound, "no recording")
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		s.logger.Error("read recording", "id", a.ID, "error", err)
		return fiber.NewError(fiber.StatusNotFound, "recording unavailable")
	}
	c.Set(fiber.HeaderContentType, audio.ContentType)
	return c.Send(data)
}

// opError maps a view failure to an HTTP status and reports it on the feed.
func (s *Server) opError(op string, err error) error {
	if msg, mErr := protocol.NewErrorMessage(op, err); mErr == nil && s.hub.IsRunning() {
		s.broadcast(msg)
	}

	switch {
	case errors.Is(err, view.ErrNotMounted), errors.Is(err, audio.ErrAlreadyRecording), errors.Is(err, audio.ErrAborted):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case audio.IsDeviceError(err):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

// handleViewWS streams protocol messages to one browser and accepts commands.
func (s *Server) handleViewWS(conn *websocket.Conn) {
	client := hub.NewClient(s.hub, conn, s.handleClientMessage)
	if client == nil {
		conn.Close()
		return
	}

	if msg, err := protocol.NewStateMessage(stateData(s.view.Snapshot())); err == nil {
		if data, err := msg.Bytes(); err == nil {
			client.Send(hub.NewJSONMessage(data))
		}
	}

	client.Run()
}

func (s *Server) handleClientMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("ignoring malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		var ping protocol.PingData
		if err := msg.ParseData(&ping); err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping)
		if err != nil {
			return
		}
		if out, err := pong.Bytes(); err == nil {
			client.Send(hub.NewJSONMessage(out))
		}

	case protocol.TypeCommand:
		var cmd protocol.CommandData
		if err := msg.ParseData(&cmd); err != nil {
			s.logger.Debug("ignoring malformed command", "error", err)
			return
		}
		if err := s.dispatch(cmd.Action); err != nil {
			if reply, mErr := protocol.NewErrorMessage(cmd.Action, err); mErr == nil {
				if out, err := reply.Bytes(); err == nil {
					client.Send(hub.NewJSONMessage(out))
				}
			}
		}

	default:
		s.logger.Debug("ignoring client message", "type", msg.Type)
	}
}

// dispatch runs one command action from a websocket client.
func (s *Server) dispatch(action string) error {
	ctx := s.ctx()
	switch action {
	case protocol.ActionStartRecording:
		return s.view.StartRecording(ctx)
	case protocol.ActionStopRecording:
		return s.view.StopRecording(ctx)
	case protocol.ActionToggleRecording:
		return s.view.ToggleRecording(ctx)
	case protocol.ActionToggleTranscript:
		s.view.ToggleTranscript()
	case protocol.ActionEndConversation:
		s.view.EndConversation()
	case protocol.ActionBack:
		s.view.Back()
	default:
		return errors.New("unknown action " + action)
	}
	return nil
}
