package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/anonto42/riseup-connect/backend/internal/models"
)

// an @ only starts a mention at the beginning of the text or after a non-word
// character, so email addresses are not picked up
var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@])@([A-Za-z0-9]{3,30})\b`)

// ExtractMentions returns the lowercased usernames mentioned in text, in order of
// first appearance and without duplicates.
func ExtractMentions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// NotifyMentions records a mention for every existing user named in text.
func (s *NotificationService) NotifyMentions(ctx context.Context, actorID uint, text string, subject *models.SubjectRef) {
	names := ExtractMentions(text)
	if len(names) == 0 {
		return
	}

	mentioned, err := s.users.GetUsersByUsernames(ctx, names)
	if err != nil {
		s.log.WithError(err).Warn("failed to resolve mentions")
		return
	}
	for _, u := range mentioned {
		s.Notify(ctx, u.ID, actorID, models.NotificationMention, subject, text)
	}
}
