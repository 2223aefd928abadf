package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/middleware"
	"github.com/averyhart/pettycoon/internal/store/memory"
)

func marshalEvent(t *testing.T, id string, typ domain.EventType, players ...string) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.GameEvent{
		ID:        id,
		Type:      typ,
		PlayerIDs: players,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return payload
}

func readEvent(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestHandleWSReplaysAndStreamsForPlayer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewSignalBus()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	// Two logged events; only the first concerns alice.
	require.NoError(t, bus.StreamAppend(ctx, "game.events.log",
		marshalEvent(t, "e1", domain.EventTradeAccepted, "alice", "bob")))
	require.NoError(t, bus.StreamAppend(ctx, "game.events.log",
		marshalEvent(t, "e2", domain.EventEggOpened, "carol")))

	hub := NewHub(bus, logger, Config{
		Channel: "game.events",
		Stream:  "game.events.log",
	})
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r.WithContext(middleware.WithPlayer(r.Context(), "alice")))
	}))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var ack struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(readEvent(t, conn), &ack))
	assert.Equal(t, "connection.ack", ack.Type)

	// The replay delivers alice's trade event and skips carol's.
	var event domain.GameEvent
	require.NoError(t, json.Unmarshal(readEvent(t, conn), &event))
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, domain.EventTradeAccepted, event.Type)

	// A live publish follows the replayed backlog.
	require.NoError(t, bus.Publish(ctx, "game.events",
		marshalEvent(t, "e3", domain.EventPetAssigned, "alice")))
	require.NoError(t, json.Unmarshal(readEvent(t, conn), &event))
	assert.Equal(t, "e3", event.ID)
}

func TestHandleWSRequiresIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(memory.NewSignalBus(), slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{
		Channel: "game.events",
	})
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
