package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNotificationKindMessage(t *testing.T) {
	cases := map[NotificationKind]string{
		NotificationLike:       "Dan liked your post",
		NotificationComment:    "Dan commented on your post",
		NotificationFollow:     "Dan started following you",
		NotificationConnection: "Dan sent you a connection request",
		NotificationShare:      "Dan shared your post",
		NotificationMention:    "Dan mentioned you",
	}
	for kind, want := range cases {
		assert.True(t, kind.Valid())
		assert.Equal(t, want, kind.Message("Dan"))
	}
}

func TestNotificationKindMessageFallbacks(t *testing.T) {
	assert.Equal(t, "Someone liked your post", NotificationLike.Message("  "))
	assert.False(t, NotificationKind("poke").Valid())
	assert.Empty(t, NotificationKind("poke").Message("Dan"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("  short  ", 10))
	assert.Equal(t, "", Excerpt("anything", 0))

	long := strings.Repeat("é", 150)
	got := Excerpt(long, ExcerptLength)
	assert.Equal(t, ExcerptLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}
