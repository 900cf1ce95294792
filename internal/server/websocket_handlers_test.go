package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"socialhub/internal/notifications"
	"socialhub/internal/testutil"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocket_RequiresUpgradeAndToken(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")

	resp := env.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/ws?token="+env.token(t, alice), "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebsocket_DeliversEvents(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, env.srv.hub.StartWiring(ctx, env.srv.notifier))

	app := env.srv.App()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	t.Cleanup(func() { _ = env.srv.hub.Shutdown(context.Background()) })

	url := "ws://" + ln.Addr().String() + "/api/ws?token=" + env.token(t, alice)
	var conn *gws.Conn
	require.Eventually(t, func() bool {
		c, _, err := gws.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return env.srv.hub.IsConnected(alice.ID) }, time.Second, 10*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/users/"+itoa(alice.ID)+"/follow", env.token(t, bob), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt notifications.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, notifications.EventFollowerAdded, evt.Type)
	payload, ok := evt.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, bob.ID, payload["follower_id"])
}
