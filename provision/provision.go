// Package provision seeds the default accounts of a fresh installation.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/password"
	"github.com/sirupsen/logrus"
)

// EmailDomain is appended to default usernames to form their email address.
const EmailDomain = "nemoserver.local"

// Account is a user to create when its username is not yet taken.
type Account struct {
	Username  string
	Password  string
	Role      account.Role
	SpeakerID string
}

// Defaults are the accounts of a fresh installation: one administrator and
// two speaker-bound users.
func Defaults() []Account {
	return []Account{
		{Username: "admin", Password: "admin123", Role: account.RoleAdmin},
		{Username: "user1", Password: "user1pass", Role: account.RoleUser, SpeakerID: "user1"},
		{Username: "television", Password: "tvpass123", Role: account.RoleUser, SpeakerID: "television"},
	}
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	InTx(ctx context.Context, fn func(account.Store) error) error
}

// Options tunes Seed. Zero values use the defaults.
type Options struct {
	Accounts []Account
	Logger   logrus.FieldLogger
	Clock    func() time.Time
}

// Result lists the usernames Seed created and skipped.
type Result struct {
	Created []string
	Skipped []string
}

// Seed creates every account whose username is absent from store. Existing
// accounts are left untouched, so Seed can run on every start.
func Seed(ctx context.Context, store account.Store, hasher password.Hasher, opts Options) (Result, error) {
	if store == nil || hasher == nil {
		return Result{}, errors.New("provision: store and hasher are required")
	}
	accounts := opts.Accounts
	if accounts == nil {
		accounts = Defaults()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "provision")
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var res Result
	seed := func(s account.Store) error {
		res = Result{}
		for _, a := range accounts {
			created, err := seedOne(ctx, s, hasher, a, clock())
			if err != nil {
				return fmt.Errorf("provision %q: %w", a.Username, err)
			}
			if created {
				res.Created = append(res.Created, a.Username)
			} else {
				res.Skipped = append(res.Skipped, a.Username)
			}
		}
		return nil
	}

	var err error
	if tx, ok := store.(Transactor); ok {
		err = tx.InTx(ctx, seed)
	} else {
		err = seed(store)
	}
	if err != nil {
		return Result{}, err
	}

	for _, name := range res.Created {
		log.WithField("username", name).Info("default account created")
	}
	return res, nil
}

func seedOne(ctx context.Context, s account.Store, hasher password.Hasher, a Account, now time.Time) (bool, error) {
	username := account.NormalizeUsername(a.Username)
	if username == "" {
		return false, errors.New("empty username")
	}
	if !a.Role.Valid() {
		return false, fmt.Errorf("%w: %d", account.ErrUnknownRole, uint8(a.Role))
	}

	_, err := s.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(a.Password)
	if err != nil {
		return false, err
	}
	now = now.UTC()
	rec := &account.Record{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         a.Role,
		SpeakerID:    account.StringPtr(a.SpeakerID),
		Email:        account.StringPtr(username + "@" + EmailDomain),
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if err := s.SaveUser(ctx, rec); err != nil {
		if errors.Is(err, account.ErrUsernameTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
