package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrivacy(t *testing.T) {
	p, err := ParsePrivacy("")
	require.NoError(t, err)
	assert.Equal(t, PrivacyPublic, p)

	p, err = ParsePrivacy(" friends ")
	require.NoError(t, err)
	assert.Equal(t, PrivacyFriends, p)

	_, err = ParsePrivacy("secret")
	assert.Error(t, err)
}

func TestPostHydrate(t *testing.T) {
	post := Post{
		User:  User{ID: 3, Username: "ana", ProfilePicture: "a.png"},
		Media: []PostMedia{{URL: "one"}, {URL: "two"}},
	}
	post.Hydrate()
	assert.Equal(t, []string{"one", "two"}, post.MediaURLs)
	assert.Equal(t, UserSummary{ID: 3, Username: "ana", ProfilePicture: "a.png"}, post.Author)

	empty := Post{}
	empty.Hydrate()
	assert.NotNil(t, empty.MediaURLs)
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 2, 4)
	assert.Equal(t, []int{1, 2}, page.Items)
	assert.True(t, page.HasMore)
	assert.Equal(t, 4, page.Offset)

	page = NewPage[int](nil, 10, 0)
	assert.NotNil(t, page.Items)
	assert.False(t, page.HasMore)
}
