// echo-backend is a development conversation backend. It speaks the same
// POST /process contract as the real one and answers every turn by echoing
// the user's text.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/pkg/conversation"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "Listen address")
	prefix := flag.String("prefix", "You said: ", "Reply prefix")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*level)

	app := newApp(*prefix)
	log.Info("echo backend listening", "addr", *addr)
	if err := app.Listen(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "echo backend: %v\n", err)
		os.Exit(1)
	}
}

func newApp(prefix string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "echo-backend",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	app.Post("/process", func(c *fiber.Ctx) error {
		var req conversation.Request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request: " + err.Error(),
			})
		}

		reply := prefix + req.Text
		if req.Text == "" {
			reply = "I didn't catch that."
		}
		log.Debug("turn", "text", req.Text, "history", len(req.ConversationHistory))
		return c.JSON(conversation.AppendTurn(req, reply))
	})

	return app
}
