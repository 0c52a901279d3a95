// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package auth provides account registration, login, session tokens and
// password reset for accountd.
//
// # Domain Types
//
// Accounts should be created with NewAccount, which validates the username
// and email and assigns a fresh ID. Direct struct initialization bypasses
// validation. Stores receive pre-validated accounts and mutate them only
// through AccountPatch.
//
// # Collaborators
//
// The Service depends on small interfaces:
//   - AccountStore - persistence (internal/auth/memory, internal/auth/postgres)
//   - PasswordHasher - salted one-way hashing (Hasher: bcrypt or argon2id)
//   - StrengthPolicy - password scoring (ZxcvbnPolicy)
//   - Notifier - out-of-band delivery (internal/notify)
//
// Session tokens are HS256 JWTs signed by a SessionIssuer and verified
// without a store lookup.
//
// # Errors
//
// Every failure is an oops error that matches one of the sentinels in
// errors.go with errors.Is. Login failures and reset redemption failures are
// deliberately undifferentiated.
package auth
