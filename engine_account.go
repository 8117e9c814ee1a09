package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nemoserver/authcore/account"
)

// ChangePassword replaces the password of username after verifying old.
// Sessions issued before the change stay valid until they expire or are
// logged out.
func (e *Engine) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	username = account.NormalizeUsername(username)

	rec, err := e.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricStoreError)
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		e.hasher.Verify(oldPassword, e.dummyHash)
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, "", username, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if !e.hasher.Verify(oldPassword, rec.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, rec.UserID, username, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.checkPasswordPolicy(newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, rec.UserID, username, "", err, func() map[string]string {
			return map[string]string{"reason": "policy"}
		})
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	updated := rec.Clone()
	updated.PasswordHash = newHash
	updated.ModifiedAt = e.now()
	if err := e.store.SaveUser(ctx, updated); err != nil {
		e.metricInc(MetricStoreError)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, rec.UserID, username, "", ErrStoreUnavailable, func() map[string]string {
			return map[string]string{"reason": "save_failed"}
		})
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, rec.UserID, username, "", nil, nil)
	return nil
}

func (e *Engine) checkPasswordPolicy(pw string) error {
	if pw == "" {
		return fmt.Errorf("%w: password must not be empty", ErrPasswordPolicy)
	}
	if minLen := e.config.Password.MinLength; minLen > 0 && len(pw) < minLen {
		return fmt.Errorf("%w: password shorter than %d characters", ErrPasswordPolicy, minLen)
	}
	return nil
}

// GetUserInfo returns the current profile of the session holder, read from
// the store rather than from the token.
func (e *Engine) GetUserInfo(ctx context.Context, tok string) (*UserInfo, error) {
	data, err := e.ValidateSession(ctx, tok)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		e.metricInc(MetricStoreError)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return userInfoFromRecord(rec), nil
}

// ListUsers returns every account without credential material.
func (e *Engine) ListUsers(ctx context.Context) ([]account.Summary, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		e.metricInc(MetricStoreError)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return users, nil
}

// Register creates an account with a random UUID. Usernames are unique.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*account.Summary, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	username := account.NormalizeUsername(req.Username)

	fail := func(err error, reason string) (*account.Summary, error) {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", username, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	if username == "" {
		return fail(ErrInvalidUsername, "empty_username")
	}
	if !req.Role.Valid() {
		return fail(ErrInvalidRole, "invalid_role")
	}
	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return fail(err, "policy")
	}

	_, err := e.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		e.metricInc(MetricAccountCreationDuplicate)
		e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", username, "", ErrAccountExists, nil)
		return nil, ErrAccountExists
	case !errors.Is(err, account.ErrNotFound):
		e.metricInc(MetricStoreError)
		return fail(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), "lookup_failed")
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrPasswordPolicy, err), "hash_failed")
	}

	now := e.now()
	rec := &account.Record{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         req.Role,
		SpeakerID:    req.SpeakerID,
		Email:        req.Email,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	rec = rec.Clone()

	if err := e.store.SaveUser(ctx, rec); err != nil {
		if errors.Is(err, account.ErrUsernameTaken) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", username, "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.metricInc(MetricStoreError)
		return fail(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), "save_failed")
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, rec.UserID, username, "", nil, func() map[string]string {
		return map[string]string{"role": rec.Role.String()}
	})

	summary := rec.Summary()
	return &summary, nil
}

// SetRole changes the stored role of username. Live sessions keep their old
// role until the next rotation.
func (e *Engine) SetRole(ctx context.Context, username string, role account.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return e.updateUser(ctx, username, "role", func(rec *account.Record) {
		rec.Role = role
	})
}

// SetSpeaker binds username to speaker; nil removes the restriction.
func (e *Engine) SetSpeaker(ctx context.Context, username string, speaker *string) error {
	return e.updateUser(ctx, username, "speaker", func(rec *account.Record) {
		if speaker == nil {
			rec.SpeakerID = nil
			return
		}
		v := *speaker
		rec.SpeakerID = &v
	})
}

func (e *Engine) updateUser(ctx context.Context, username, field string, mutate func(*account.Record)) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	rec, err := e.store.GetUserByUsername(ctx, account.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrUserNotFound
		}
		e.metricInc(MetricStoreError)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	updated := rec.Clone()
	mutate(updated)
	updated.ModifiedAt = e.now()
	if err := e.store.SaveUser(ctx, updated); err != nil {
		e.metricInc(MetricStoreError)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventAccountUpdate, true, rec.UserID, rec.Username, "", nil, func() map[string]string {
		return map[string]string{"field": field}
	})
	return nil
}
