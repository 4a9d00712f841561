// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides local account registration, login and session
// tracking built on the key-value store.
package auth

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lawsonmorris/nova-cli/internal/kvstore"
	"github.com/lawsonmorris/nova-cli/internal/model"
)

// =============================================================================
// STORAGE KEYS
// =============================================================================

const (
	// KeyCurrentUser holds the SessionUser of the logged-in account.
	KeyCurrentUser = "current_user"
	// KeyUsersDB holds the full list of registered accounts (hash+salt).
	KeyUsersDB = "users_db"
	// KeyOnboarding holds the "has completed onboarding" flag. Cleared on
	// logout so onboarding is shown again on the next login.
	KeyOnboarding = "has_seen_onboarding"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateAccount indicates an account already exists for the email.
	ErrDuplicateAccount = errors.New("account already exists with this email")
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// =============================================================================
// AUTH STORE
// =============================================================================

// Store manages accounts and the current login session.
//
// All state lives in the key-value store; Store itself holds no mutable
// account data, so every read reflects the latest persisted state.
type Store struct {
	kv  *kvstore.Store
	log *zap.Logger
}

// NewStore creates an auth store over the given key-value store.
func NewStore(kv *kvstore.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// Register creates a new account and logs it in.
//
// Fails with ErrDuplicateAccount when an account with the same normalized
// email already exists; the account list is not mutated on failure.
// Password format rules are the caller's concern.
func (s *Store) Register(name, email, password string) (*model.SessionUser, error) {
	accounts := s.loadAccounts()

	normalized := model.NormalizeEmail(email)
	for i := range accounts {
		if accounts[i].NormalizedEmail() == normalized {
			return nil, ErrDuplicateAccount
		}
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	acct := model.Account{
		ID:           "user-" + uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		AvatarURL:    avatarURL(name),
	}

	accounts = append(accounts, acct)
	if err := s.kv.Set(KeyUsersDB, accounts); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	user := acct.SessionUser()
	if err := s.kv.Set(KeyCurrentUser, user); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.log.Info("account registered", zap.String("id", acct.ID), zap.String("email", normalized))
	return &user, nil
}

// Login verifies credentials and records the account as the current session.
//
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Store) Login(email, password string) (*model.SessionUser, error) {
	accounts := s.loadAccounts()

	normalized := model.NormalizeEmail(email)
	var acct *model.Account
	for i := range accounts {
		if accounts[i].NormalizedEmail() == normalized {
			acct = &accounts[i]
			break
		}
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(password, acct.Salt, acct.PasswordHash) {
		s.log.Warn("login rejected", zap.String("email", normalized))
		return nil, ErrInvalidCredentials
	}

	user := acct.SessionUser()
	if err := s.kv.Set(KeyCurrentUser, user); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.log.Info("login", zap.String("id", acct.ID))
	return &user, nil
}

// Logout clears the current session and the onboarding flag. Onboarding is
// shown again on the next login on purpose.
func (s *Store) Logout() error {
	if err := s.kv.Delete(KeyCurrentUser); err != nil {
		return err
	}
	if err := s.kv.Delete(KeyOnboarding); err != nil {
		return err
	}
	s.log.Info("logout")
	return nil
}

// CurrentUser returns the logged-in account's SessionUser, or nil when no
// session exists. A record that fails to deserialize is treated as absent
// and deleted so a corrupt session cannot wedge startup.
func (s *Store) CurrentUser() *model.SessionUser {
	var user model.SessionUser
	err := s.kv.Get(KeyCurrentUser, &user)
	switch {
	case err == nil:
		return &user
	case errors.Is(err, kvstore.ErrNotFound):
		return nil
	default:
		// Self-healing read: drop the corrupt record.
		s.log.Warn("clearing corrupt current_user record", zap.Error(err))
		_ = s.kv.Delete(KeyCurrentUser)
		return nil
	}
}

// =============================================================================
// ONBOARDING FLAG
// =============================================================================

// HasSeenOnboarding reports whether onboarding was completed for the current
// session. Unreadable state degrades to false.
func (s *Store) HasSeenOnboarding() bool {
	var seen bool
	if err := s.kv.Get(KeyOnboarding, &seen); err != nil {
		return false
	}
	return seen
}

// CompleteOnboarding records that onboarding has been shown.
func (s *Store) CompleteOnboarding() error {
	return s.kv.Set(KeyOnboarding, true)
}

// =============================================================================
// HELPERS
// =============================================================================

// loadAccounts reads the account list, degrading to empty on any error so a
// corrupt users_db never crashes the engine. Registration over a degraded
// list starts a fresh one; the broken record is overwritten on next save.
func (s *Store) loadAccounts() []model.Account {
	var accounts []model.Account
	if err := s.kv.Get(KeyUsersDB, &accounts); err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.log.Warn("users_db unreadable, treating as empty", zap.Error(err))
		}
		return nil
	}
	return accounts
}

// avatarURL derives a deterministic avatar image URL from the display name.
func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random&color=fff"
}
