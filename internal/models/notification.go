package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind is the event type of a ledger entry
type NotificationKind string

const (
	NotificationLike       NotificationKind = "like"
	NotificationComment    NotificationKind = "comment"
	NotificationFollow     NotificationKind = "follow"
	NotificationConnection NotificationKind = "connection"
	NotificationShare      NotificationKind = "share"
	NotificationMention    NotificationKind = "mention"
)

// ExcerptLength bounds comment excerpts and subject previews, in runes.
const ExcerptLength = 100

var notificationTemplates = map[NotificationKind]string{
	NotificationLike:       "%s liked your post",
	NotificationComment:    "%s commented on your post",
	NotificationFollow:     "%s started following you",
	NotificationConnection: "%s sent you a connection request",
	NotificationShare:      "%s shared your post",
	NotificationMention:    "%s mentioned you",
}

func (k NotificationKind) Valid() bool {
	_, ok := notificationTemplates[k]
	return ok
}

// Message renders the canned text for the kind. The result is stored on the entry
// once and never regenerated.
func (k NotificationKind) Message(actorName string) string {
	tmpl, ok := notificationTemplates[k]
	if !ok {
		return ""
	}
	if strings.TrimSpace(actorName) == "" {
		actorName = "Someone"
	}
	return fmt.Sprintf(tmpl, actorName)
}

type SubjectType string

const (
	SubjectPost    SubjectType = "post"
	SubjectUser    SubjectType = "user"
	SubjectComment SubjectType = "comment"
)

// SubjectRef points at the entity a notification is about
type SubjectRef struct {
	Type SubjectType `json:"type" bson:"type"`
	ID   string      `json:"id" bson:"id"`
}

// Notification is an entry in the user-directed activity ledger (MongoDB).
type Notification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RecipientID    uint               `json:"recipient_id" bson:"recipient_id"`
	ActorID        uint               `json:"actor_id" bson:"actor_id"`
	Kind           NotificationKind   `json:"kind" bson:"kind"`
	Subject        *SubjectRef        `json:"subject,omitempty" bson:"subject,omitempty"`
	CommentExcerpt string             `json:"comment_excerpt,omitempty" bson:"comment_excerpt,omitempty"`
	Message        string             `json:"message" bson:"message"`
	IsRead         bool               `json:"is_read" bson:"is_read"`
	ReadAt         *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// EnrichedNotification includes actor info and, for post subjects, a content excerpt
type EnrichedNotification struct {
	Notification   `bson:",inline"`
	Actor          UserCompact `json:"actor"`
	SubjectExcerpt string      `json:"subject_excerpt,omitempty"`
}

// Excerpt trims s and truncates it to at most max runes, the last being an ellipsis
// when the text was cut.
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
