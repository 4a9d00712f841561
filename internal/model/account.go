// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// account.go - Account records and the externally exposed SessionUser view.
package model

import "strings"

// =============================================================================
// ACCOUNT TYPE
// =============================================================================

// Account is the full persisted account record, including credential
// material. It never leaves the auth package; external callers only ever
// see the SessionUser projection.
type Account struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Salt         string `json:"salt"`
	AvatarURL    string `json:"avatar,omitempty"`
}

// NormalizedEmail returns the identity key for the account: the lower-cased
// email address. Two accounts are the same iff their normalized emails match.
func (a *Account) NormalizedEmail() string {
	return NormalizeEmail(a.Email)
}

// SessionUser returns the non-secret projection of the account.
func (a *Account) SessionUser() SessionUser {
	return SessionUser{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		AvatarURL: a.AvatarURL,
	}
}

// NormalizeEmail lower-cases and trims an email for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// SESSION USER TYPE
// =============================================================================

// SessionUser is the form of an account exposed outside the auth package
// and persisted as the "current session" record. It carries no credential
// material.
type SessionUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar,omitempty"`
}
