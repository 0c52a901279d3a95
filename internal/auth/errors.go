// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"errors"
	"strings"
)

// Error codes attached to oops errors returned by this package.
const (
	CodeWeakCredential        = "AUTH_WEAK_CREDENTIAL"
	CodeDuplicateIdentity     = "AUTH_DUPLICATE_IDENTITY"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeNotFound              = "AUTH_NOT_FOUND"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeDeliveryFailed        = "AUTH_DELIVERY_FAILED"
	CodeStoreFailed           = "AUTH_STORE_FAILED"
	CodeInvalidSession        = "AUTH_INVALID_SESSION"
	CodeInvalidInput          = "AUTH_INVALID_INPUT"
)

var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWeakCredential is returned when a password fails the strength policy.
	// Use errors.As with *WeakCredentialError to read the suggestions.
	ErrWeakCredential = errors.New("password is not strong enough")

	// ErrDuplicateIdentity is returned when the username is already taken.
	ErrDuplicateIdentity = errors.New("username already exists")

	// ErrInvalidCredential is returned for every failed login, whether or not
	// the email is known.
	ErrInvalidCredential = errors.New("invalid email or password")

	// ErrInvalidOrExpiredToken is returned for every failed reset redemption.
	ErrInvalidOrExpiredToken = errors.New("password reset token is invalid or has expired")

	// ErrDeliveryFailed is returned when the reset notification could not be
	// delivered. The reset token has already been persisted at that point.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrStore matches any *StoreError.
	ErrStore = errors.New("account store failure")

	// ErrInvalidSession is returned when a session token does not verify.
	ErrInvalidSession = errors.New("invalid session token")

	// ErrInvalidInput is returned when a request field is malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// WeakCredentialError carries the strength policy feedback for a rejected password.
type WeakCredentialError struct {
	Score       int
	Suggestions []string
}

func (e *WeakCredentialError) Error() string {
	if len(e.Suggestions) == 0 {
		return ErrWeakCredential.Error()
	}
	return ErrWeakCredential.Error() + ": " + strings.Join(e.Suggestions, "; ")
}

// Is reports whether target is ErrWeakCredential.
func (e *WeakCredentialError) Is(target error) bool {
	return target == ErrWeakCredential
}

// StoreError wraps an underlying persistence fault.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "account store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Suggestions returns the strength feedback carried by err, if any.
func Suggestions(err error) []string {
	var weak *WeakCredentialError
	if errors.As(err, &weak) {
		return weak.Suggestions
	}
	return nil
}
