// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// hash.go - Salted password hashing primitive. There is no decryption
// path: verification is recompute-and-compare.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SaltSize is the size of the per-account random salt (16 bytes).
const SaltSize = 16

// DigestSize is the size of the derived password digest (32 bytes).
const DigestSize = 32

// PBKDF2Iterations is the iteration count for PBKDF2-SHA-256 key derivation.
// OWASP 2023 recommends 600,000+ for PBKDF2-SHA-256 to provide adequate
// resistance against brute-force attacks with modern hardware.
const PBKDF2Iterations = 600000

// =============================================================================
// HASHING
// =============================================================================

// NewSalt returns a fresh unpredictable salt, hex-encoded.
func NewSalt() (string, error) {
	buf := make([]byte, SaltSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a deterministic one-way digest of password and the
// hex-encoded salt, returned hex-encoded.
func HashPassword(password, saltHex string) string {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		// A malformed salt can only come from a tampered record; derive over
		// the raw string so login still fails closed instead of panicking.
		salt = []byte(saltHex)
	}
	digest := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, DigestSize, sha256.New)
	return hex.EncodeToString(digest)
}

// VerifyPassword recomputes the digest for password under the stored salt
// and compares it against the stored digest in constant time.
func VerifyPassword(password, saltHex, digestHex string) bool {
	computed := HashPassword(password, saltHex)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digestHex)) == 1
}
