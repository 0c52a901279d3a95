// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mrz1836/postmark"
	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
)

// PostmarkConfig configures the Postmark adapter.
type PostmarkConfig struct {
	ServerToken string
	From        string
	Tag         string
	// BaseURL overrides the API endpoint; empty keeps the library default.
	BaseURL string
	Timeout time.Duration
}

// Postmark delivers messages through the Postmark transactional API.
type Postmark struct {
	client *postmark.Client
	cfg    PostmarkConfig
}

var _ auth.Notifier = (*Postmark)(nil)

// NewPostmark validates cfg and builds a client.
func NewPostmark(cfg PostmarkConfig) (*Postmark, error) {
	if cfg.ServerToken == "" {
		return nil, oops.Code(CodeNotifierConfig).Errorf("postmark server token is required")
	}
	if cfg.From == "" {
		return nil, oops.Code(CodeNotifierConfig).Errorf("postmark sender address is required")
	}

	client := postmark.NewClient(cfg.ServerToken, "")
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Postmark{client: client, cfg: cfg}, nil
}

// Send implements auth.Notifier. Provider-side rejections are permanent;
// transport failures may be retried.
func (p *Postmark) Send(ctx context.Context, msg auth.Message) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.cfg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.Body,
		Tag:      p.cfg.Tag,
	})
	if resp.ErrorCode > 0 {
		return permanent(oops.
			With("error_code", resp.ErrorCode).
			Errorf("postmark rejected message: %d %s", resp.ErrorCode, resp.Message))
	}
	if err != nil {
		if ctx.Err() != nil {
			return oops.Code(CodeSendFailed).Wrap(ctx.Err())
		}
		return oops.Code(CodeSendFailed).With("provider", "postmark").Wrap(fmt.Errorf("postmark send: %w", err))
	}
	return nil
}
