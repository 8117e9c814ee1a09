package authcore

import (
	"github.com/nemoserver/authcore/account"
)

// UserInfo is the profile returned for the holder of a session.
type UserInfo struct {
	UserID    string       `json:"user_id"`
	Username  string       `json:"username"`
	Role      account.Role `json:"role"`
	SpeakerID *string      `json:"speaker_id"`
	Email     *string      `json:"email"`
}

// RegisterRequest describes an account to create.
// A nil SpeakerID leaves the account unrestricted, which is only
// meaningful for administrators.
type RegisterRequest struct {
	Username  string
	Password  string
	Role      account.Role
	SpeakerID *string
	Email     *string
}

func userInfoFromRecord(rec *account.Record) *UserInfo {
	return &UserInfo{
		UserID:    rec.UserID,
		Username:  rec.Username,
		Role:      rec.Role,
		SpeakerID: rec.SpeakerID,
		Email:     rec.Email,
	}
}
