// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
)

// fileRecord is the on-disk shape of a delivered message.
type fileRecord struct {
	Timestamp time.Time `json:"timestamp"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// File writes each message as a JSON file under a directory. It is a
// development-only outbox: the files hold plaintext reset tokens (created
// 0600), so config.Config.Warnings flags it next to a postgres store.
type File struct {
	dir string
	now func() time.Time
}

var _ auth.Notifier = (*File)(nil)

// NewFile creates a File notifier rooted at dir.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, oops.Code(CodeNotifierConfig).Errorf("notifier directory is required")
	}
	return &File{dir: dir, now: time.Now}, nil
}

// Send implements auth.Notifier.
func (f *File) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code(CodeSendFailed).Wrap(err)
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return oops.Code(CodeSendFailed).With("dir", f.dir).Wrap(err)
	}

	now := f.now().UTC()
	rec := fileRecord{Timestamp: now, To: msg.To, Subject: msg.Subject, Body: msg.Body}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return oops.Code(CodeSendFailed).Wrap(err)
	}

	name := fmt.Sprintf("%s_%s.json", now.Format("20060102T150405.000000000"), unsafeFilename.ReplaceAllString(msg.To, "_"))
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return oops.Code(CodeSendFailed).With("path", path).Wrap(err)
	}
	return nil
}
