package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/teslashibe/go-lingua/pkg/conversation"
)

func TestProcess(t *testing.T) {
	app := newApp("echo: ")

	t.Run("appends turn", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/process",
			strings.NewReader(`{"text":"bonjour","conversation_history":["a","b"]}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		var got conversation.Response
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := []string{"a", "b", "bonjour", "echo: bonjour"}
		if len(got.NewHistory) != len(want) {
			t.Fatalf("history = %v, want %v", got.NewHistory, want)
		}
		for i := range want {
			if got.NewHistory[i] != want[i] {
				t.Errorf("history[%d] = %q, want %q", i, got.NewHistory[i], want[i])
			}
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"text":`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("client round trip", func(t *testing.T) {
		srv := httptest.NewServer(adaptor.FiberApp(app))
		defer srv.Close()

		client := conversation.NewClient(conversation.WithEndpoint(srv.URL + "/process"))
		resp, err := client.Exchange(context.Background(), conversation.NewRequest("hola", nil))
		if err != nil {
			t.Fatalf("Exchange: %v", err)
		}
		if resp.Text != "echo: hola" {
			t.Errorf("text = %q", resp.Text)
		}
		if len(resp.NewHistory) != 2 || resp.NewHistory[0] != "hola" {
			t.Errorf("history = %v", resp.NewHistory)
		}
	})
}
