package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockroom/config"
	"github.com/wfunc/blockroom/monitor"
	"github.com/wfunc/blockroom/persistence"
	"github.com/wfunc/blockroom/room"
	"github.com/wfunc/blockroom/services"
)

type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	State json.RawMessage `json:"state"`

	Timestamp        json.Number `json:"timestamp"`
	ServerReceivedAt int64       `json:"serverReceivedAt"`
	ServerSentAt     int64       `json:"serverSentAt"`
}

type stateFrame struct {
	Version uint64 `json:"version"`
	Status  string `json:"status"`
	Players map[string]struct {
		Username string `json:"username"`
	} `json:"players"`
}

func newTestServer(t *testing.T, requireRegistered bool) *httptest.Server {
	t.Helper()
	return newTestServerWithDirectory(t, persistence.NewMemoryDirectory(), requireRegistered)
}

func newTestServerWithDirectory(t *testing.T, dir persistence.Directory, requireRegistered bool) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	mon := monitor.NewMonitor("test")
	rooms := room.NewRoomManager(ctx, room.Options{Mode: room.ModePuzzle, Seed: 7, Recorder: mon}, time.Minute)
	svc := services.NewRoomService(dir, "puzzle", requireRegistered)
	gs := NewGameServer(config.ServerConfig{SendBuffer: 16}, rooms, svc, mon)

	ts := httptest.NewServer(gs.Handler())
	t.Cleanup(func() {
		gs.Sessions().CloseAll()
		ts.Close()
		cancel()
		rooms.Shutdown()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { c.Close() })
	return c
}

// next reads frames until one of the given type arrives.
func next(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func nextState(t *testing.T, c *websocket.Conn) stateFrame {
	t.Helper()
	var s stateFrame
	require.NoError(t, json.Unmarshal(next(t, c, "state-update").State, &s))
	return s
}

func send(t *testing.T, c *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestRoomAPI(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		RoomID string `json:"roomId"`
		Mode   string `json:"mode"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.NotEmpty(t, created.RoomID)
	assert.Equal(t, "puzzle", created.Mode)

	resp, err = http.Get(ts.URL + "/api/rooms/" + created.RoomID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		RoomID string `json:"roomId"`
		Live   bool   `json:"live"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, created.RoomID, got.RoomID)
	assert.False(t, got.Live)

	resp, err = http.Get(ts.URL + "/api/rooms/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/rooms")
	require.NoError(t, err)
	var list []json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list, 1)
}

func TestWebSocketRoundTrip(t *testing.T) {
	ts := newTestServer(t, false)

	a := dial(t, ts, "/ws/lobby")
	welcome := next(t, a, "welcome")
	assert.NotEmpty(t, welcome.ID)

	send(t, a, `{"type":"join","username":"Fox"}`)
	s := nextState(t, a)
	assert.Equal(t, uint64(1), s.Version)
	assert.Equal(t, "waiting", s.Status)
	require.Len(t, s.Players, 1)

	send(t, a, `{"type":"ping","timestamp":1234.5}`)
	pong := next(t, a, "pong")
	assert.Equal(t, json.Number("1234.5"), pong.Timestamp)
	assert.GreaterOrEqual(t, pong.ServerSentAt, pong.ServerReceivedAt)

	// the alias path reaches the same room
	b := dial(t, ts, "/game/lobby")
	next(t, b, "welcome")
	send(t, b, `{"type":"join","username":"Owl"}`)

	s = nextState(t, b)
	assert.Len(t, s.Players, 2)
	s = nextState(t, a)
	assert.Len(t, s.Players, 2)

	require.NoError(t, b.Close())
	s = nextState(t, a)
	require.Len(t, s.Players, 1)
	for _, p := range s.Players {
		assert.Equal(t, "Fox", p.Username)
	}

	resp, err := http.Get(ts.URL + "/api/rooms/lobby")
	require.NoError(t, err)
	defer resp.Body.Close()
	var view struct {
		Live    bool   `json:"live"`
		Status  string `json:"status"`
		Players int    `json:"players"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.True(t, view.Live)
	assert.Equal(t, "waiting", view.Status)
	assert.Equal(t, 1, view.Players)
}

func TestWebSocket_UsesRegisteredMode(t *testing.T) {
	dir := persistence.NewMemoryDirectory()
	_, err := dir.CreateRoom(context.Background(), "sandbox", "free")
	require.NoError(t, err)
	ts := newTestServerWithDirectory(t, dir, false)

	c := dial(t, ts, "/ws/sandbox")
	next(t, c, "welcome")
	send(t, c, `{"type":"join","username":"Fox"}`)

	var state map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(next(t, c, "state-update").State, &state))
	assert.NotContains(t, state, "game", "a free room hosts no puzzle")

	p := dial(t, ts, "/ws/puzzle-room")
	next(t, p, "welcome")
	send(t, p, `{"type":"join","username":"Owl"}`)
	state = nil
	require.NoError(t, json.Unmarshal(next(t, p, "state-update").State, &state))
	assert.Contains(t, state, "game")
}

func TestWebSocket_RequireRegistered(t *testing.T) {
	ts := newTestServer(t, true)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/unregistered"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	a := dial(t, ts, "/ws/metrics-room")
	next(t, a, "welcome")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_open_connections 1")
	assert.Contains(t, string(body), "test_active_rooms 1")
}

func TestCheckOrigin(t *testing.T) {
	gs := &GameServer{cfg: config.ServerConfig{AllowedOrigins: []string{"https://play.example"}}}

	r := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	r.Header.Set("Origin", "https://play.example")
	assert.True(t, gs.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, gs.checkOrigin(r))

	open := &GameServer{}
	assert.True(t, open.checkOrigin(r))
}
