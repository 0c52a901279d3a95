// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package notify provides auth.Notifier adapters: Postmark delivery, a
// development file sink, and a retrying decorator.
package notify

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for notifier failures.
const (
	CodeNotifierConfig = "NOTIFY_CONFIG_INVALID"
	CodeSendFailed     = "NOTIFY_SEND_FAILED"
	CodeRejected       = "NOTIFY_REJECTED"
)

// ErrPermanent marks a failure that retrying cannot fix, such as a
// recipient the provider refuses.
var ErrPermanent = errors.New("permanent delivery failure")

// permanent wraps err so Retrying gives up immediately.
func permanent(err error) error {
	return oops.Code(CodeRejected).Wrap(errors.Join(ErrPermanent, err))
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
