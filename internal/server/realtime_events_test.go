package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"socialhub/internal/featureflags"
	"socialhub/internal/models"
	"socialhub/internal/notifications"
	"socialhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedEvent struct {
	channel string
	event   notifications.Event
}

// listen subscribes to every notification channel and returns a function
// that collects whatever arrives within a short quiet period.
func listen(t *testing.T, env *testEnv) func() []receivedEvent {
	t.Helper()
	ctx := context.Background()
	ps := env.rdb.PSubscribe(ctx, "notifications:*")
	_, err := ps.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	ch := ps.Channel()

	return func() []receivedEvent {
		var out []receivedEvent
		for {
			select {
			case msg := <-ch:
				var evt notifications.Event
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
				out = append(out, receivedEvent{channel: msg.Channel, event: evt})
			case <-time.After(200 * time.Millisecond):
				return out
			}
		}
	}
}

func channels(events []receivedEvent, eventType string) []string {
	var out []string
	for _, e := range events {
		if e.event.Type == eventType {
			out = append(out, e.channel)
		}
	}
	return out
}

func TestPostAudience(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	carol := testutil.CreateUser(t, env.db, "carol")
	testutil.CreateFollow(t, env.db, bob, alice)
	testutil.CreateFollow(t, env.db, carol, alice)
	testutil.CreateFollow(t, env.db, alice, bob)

	tests := []struct {
		privacy   models.Privacy
		broadcast bool
		users     []uint
	}{
		{models.PrivacyPublic, true, nil},
		{models.PrivacyFriends, false, []uint{alice.ID, bob.ID, carol.ID}},
		{models.PrivacyPrivate, false, []uint{alice.ID}},
	}
	for _, tt := range tests {
		t.Run(string(tt.privacy), func(t *testing.T) {
			post := testutil.CreatePost(t, env.db, alice, tt.privacy, "audience")
			broadcast, users := env.srv.postAudience(context.Background(), post)
			assert.Equal(t, tt.broadcast, broadcast)
			assert.ElementsMatch(t, tt.users, users)
		})
	}
}

func TestRealtime_PublicPostIsBroadcast(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	collect := listen(t, env)

	resp := env.do(t, http.MethodPost, "/api/posts", env.token(t, alice), map[string]any{"content": "hi all"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := collect()
	assert.Equal(t, []string{"notifications:broadcast"}, channels(got, notifications.EventPostCreated))
}

func TestRealtime_FriendsPostReachesFollowersOnly(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	carol := testutil.CreateUser(t, env.db, "carol")
	testutil.CreateFollow(t, env.db, bob, alice)
	collect := listen(t, env)

	resp := env.do(t, http.MethodPost, "/api/posts", env.token(t, alice), map[string]any{
		"content":       "friends only",
		"privacy_level": "FRIENDS",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := channels(collect(), notifications.EventPostCreated)
	assert.ElementsMatch(t, []string{
		notifications.UserChannel(alice.ID),
		notifications.UserChannel(bob.ID),
	}, got)
	assert.NotContains(t, got, notifications.UserChannel(carol.ID))
	assert.NotContains(t, got, "notifications:broadcast")
}

func TestRealtime_PrivatePostReachesAuthorOnly(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	testutil.CreateFollow(t, env.db, bob, alice)
	post := testutil.CreatePost(t, env.db, alice, models.PrivacyPrivate, "diary")
	collect := listen(t, env)

	resp := env.do(t, http.MethodPost, "/api/posts/"+itoa(post.ID)+"/like", env.token(t, alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := collect()
	assert.Equal(t, []string{notifications.UserChannel(alice.ID)}, channels(got, notifications.EventPostReactionUpdated))
}

func TestRealtime_CommentEventsCarryCount(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	post := testutil.CreatePost(t, env.db, alice, models.PrivacyPublic, "talk")
	token := env.token(t, alice)
	collect := listen(t, env)

	comment := createComment(t, env, token, post.ID, "me first")
	resp := env.do(t, http.MethodDelete, "/api/comments/"+itoa(comment.ID), token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got := collect()
	var created, deleted map[string]any
	for _, e := range got {
		payload, _ := e.event.Payload.(map[string]any)
		switch e.event.Type {
		case notifications.EventCommentCreated:
			created = payload
		case notifications.EventCommentDeleted:
			deleted = payload
		}
	}
	require.NotNil(t, created)
	require.NotNil(t, deleted)
	assert.EqualValues(t, 1, created["comments_count"])
	assert.EqualValues(t, 0, deleted["comments_count"])
	assert.EqualValues(t, comment.ID, deleted["comment_id"])
}

func TestRealtime_FollowNotifiesFollowee(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	token := env.token(t, bob)
	collect := listen(t, env)

	resp := env.do(t, http.MethodPost, "/api/users/"+itoa(alice.ID)+"/follow", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/users/"+itoa(alice.ID)+"/follow", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got := collect()
	// the repeated follow creates no edge and sends nothing
	assert.Equal(t, []string{notifications.UserChannel(alice.ID)}, channels(got, notifications.EventFollowerAdded))
}

func TestRealtime_DisabledByFeatureFlag(t *testing.T) {
	env := newTestServer(t)
	env.srv.featureFlags = featureflags.NewManager("realtime=off")
	alice := testutil.CreateUser(t, env.db, "alice")
	collect := listen(t, env)

	resp := env.do(t, http.MethodPost, "/api/posts", env.token(t, alice), map[string]any{"content": "quiet"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Empty(t, collect())
}
