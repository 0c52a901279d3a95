// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"context"
	"fmt"
	"time"
)

// DefaultResetSubject is the subject line of reset messages.
const DefaultResetSubject = "Hyper-Lab Password Reset"

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages out of band. Implementations live in
// internal/notify.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

func resetMessage(to, subject, token string, expiresAt time.Time) Message {
	body := fmt.Sprintf(
		"Please use the following token to reset your password: %s\n\n"+
			"The token expires at %s. If you did not request a reset, ignore this message.\n",
		token, expiresAt.UTC().Format(time.RFC1123),
	)
	return Message{To: to, Subject: subject, Body: body}
}
