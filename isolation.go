package authcore

import (
	"strings"

	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/session"
)

// AllowedSpeakers lists the speakers a session may read. nil means every
// speaker (administrators); an empty slice means none.
func AllowedSpeakers(sess *session.Data) []string {
	if sess == nil {
		return []string{}
	}
	if sess.Role == account.RoleAdmin {
		return nil
	}
	if sess.SpeakerID == nil || *sess.SpeakerID == "" {
		return []string{}
	}
	return []string{*sess.SpeakerID}
}

// CanAccessSpeaker reports whether sess may read data for speaker.
// Speaker ids compare case-insensitively.
func CanAccessSpeaker(sess *session.Data, speaker string) bool {
	if sess == nil {
		return false
	}
	if sess.Role == account.RoleAdmin {
		return true
	}
	if sess.SpeakerID == nil || *sess.SpeakerID == "" {
		return false
	}
	return strings.EqualFold(*sess.SpeakerID, speaker)
}

// ValidateSpeakerAccess resolves the speaker a request should be scoped to.
// A user who names no speaker gets their own; naming someone else's is
// ErrSpeakerAccessDenied. Administrators get exactly what they asked for,
// and "" means all speakers.
func ValidateSpeakerAccess(sess *session.Data, requested string) (string, error) {
	if sess == nil {
		return "", ErrUnauthorized
	}
	if sess.Role == account.RoleAdmin {
		return requested, nil
	}
	own := account.Deref(sess.SpeakerID)
	if own == "" {
		return "", ErrSpeakerAccessDenied
	}
	if requested == "" {
		return own, nil
	}
	if !strings.EqualFold(own, requested) {
		return "", ErrSpeakerAccessDenied
	}
	return own, nil
}

// FilterBySpeaker keeps the items whose speaker sess may read.
func FilterBySpeaker[T any](sess *session.Data, items []T, speakerOf func(T) string) []T {
	if sess != nil && sess.Role == account.RoleAdmin {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if CanAccessSpeaker(sess, speakerOf(it)) {
			out = append(out, it)
		}
	}
	return out
}
