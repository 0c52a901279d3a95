// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes      = 32        // 32 bytes = 64 hex chars
	DefaultResetTokenTTL = time.Hour // 1 hour expiry
)

// GenerateResetToken creates a secure random token and its lookup digest.
// Returns (plaintext_token, lookup, error).
// The plaintext token is sent to the user and never stored. The lookup is a
// deterministic digest used only to locate the account; the authoritative
// check is the salted hash produced by the PasswordHasher.
func GenerateResetToken() (token, lookup string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, ResetLookup(token), nil
}

// ResetLookup computes the hex SHA-256 digest of a reset token.
func ResetLookup(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// wellFormedResetToken reports whether token has the shape GenerateResetToken emits.
func wellFormedResetToken(token string) bool {
	if len(token) != ResetTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
