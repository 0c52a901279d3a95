// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// secretReader reads passwords. A terminal gets a prompt with echo disabled;
// anything else is read one line per secret.
type secretReader struct {
	in     io.Reader
	prompt io.Writer
	lines  *bufio.Reader
}

func newSecretReader(in io.Reader, prompt io.Writer) *secretReader {
	return &secretReader{in: in, prompt: prompt}
}

func (r *secretReader) terminal() (int, bool) {
	f, ok := r.in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// Read returns one secret.
func (r *secretReader) Read(label string) (string, error) {
	if fd, ok := r.terminal(); ok {
		_, _ = fmt.Fprintf(r.prompt, "%s: ", label)
		secret, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(r.prompt)
		if err != nil {
			return "", oops.Code("INPUT_READ_FAILED").With("prompt", label).Wrap(err)
		}
		return string(secret), nil
	}

	if r.lines == nil {
		r.lines = bufio.NewReader(r.in)
	}
	line, err := r.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", oops.Code("INPUT_READ_FAILED").With("prompt", label).Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadNew returns a new secret. On a terminal it asks twice and requires the
// entries to match.
func (r *secretReader) ReadNew(label string) (string, error) {
	secret, err := r.Read(label)
	if err != nil {
		return "", err
	}
	if _, ok := r.terminal(); !ok {
		return secret, nil
	}
	confirm, err := r.Read("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if confirm != secret {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return secret, nil
}
