// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
)

// Writer prints each message to an io.Writer. The CLI uses it so an operator
// can hand a reset token to a user without a mail provider.
// Like File, it exposes plaintext reset tokens and is for development only.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ auth.Notifier = (*Writer)(nil)

// NewWriter creates a Writer notifier.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send implements auth.Notifier.
func (n *Writer) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code(CodeSendFailed).Wrap(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "To: %s\nSubject: %s\n\n%s\n", msg.To, msg.Subject, msg.Body); err != nil {
		return oops.Code(CodeSendFailed).Wrap(err)
	}
	return nil
}
