// Package notify publishes update notices to an ntfy server.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AnthonyHewins/gotfy"
	"github.com/samber/lo"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

var ErrNotConfigured = errors.New("ntfy address and topic are required")

type Options struct {
	Address string
	Topic   string
	Token   string
}

// Publisher is a gotfy publisher bound to one topic.
type Publisher struct {
	pub   *gotfy.Publisher
	topic string
}

// New builds a publisher on top of hc. hc may be nil; its transport is
// wrapped so every request carries the bearer token.
func New(opts Options, hc *http.Client) (*Publisher, error) {
	if opts.Address == "" || opts.Topic == "" {
		return nil, ErrNotConfigured
	}

	server, err := url.Parse(opts.Address)
	if err != nil {
		return nil, fmt.Errorf("could not get ntfy publisher: %w", err)
	}

	client := &http.Client{}
	if hc != nil {
		*client = *hc
	}
	client.Transport = &bearerTransport{base: client.Transport, token: opts.Token}

	pub, err := gotfy.NewPublisher(server, client)
	if err != nil {
		return nil, fmt.Errorf("could not get ntfy publisher: %w", err)
	}

	return &Publisher{pub: pub, topic: opts.Topic}, nil
}

type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.token == "" {
		return base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)

	return base.RoundTrip(req)
}

// Send publishes msg to the configured topic.
func (p *Publisher) Send(ctx context.Context, msg *gotfy.Message) error {
	msg.Topic = p.topic
	if _, err := p.pub.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("could not send message to ntfy: %w", err)
	}

	return nil
}

// NotifyUpdates announces the new chapters of a quick check. It does nothing
// when res has no updates.
func (p *Publisher) NotifyUpdates(ctx context.Context, series, listURL string, res *providers.QuickCheckResult) error {
	if res == nil || !res.HasUpdates {
		return nil
	}

	msg := UpdateMessage(series, listURL, res)
	return p.Send(ctx, msg)
}

// UpdateMessage renders res as an ntfy message. The click and action link
// point at the highest new chapter, or the listing when it has no URL.
func UpdateMessage(series, listURL string, res *providers.QuickCheckResult) *gotfy.Message {
	if series == "" {
		series = listURL
	}

	lines := lo.Map(res.NewChapters, func(c providers.RawChapter, _ int) string {
		return fmt.Sprintf("Chapter %s: %s", providers.FormatNumber(c.Number), c.Title)
	})

	msg := &gotfy.Message{
		Title:   fmt.Sprintf("New chapters of manga: %s", series),
		Message: strings.Join(lines, "\n"),
	}

	target := listURL
	if len(res.NewChapters) > 0 {
		newest := lo.MaxBy(res.NewChapters, func(a, b providers.RawChapter) bool { return a.Number > b.Number })
		if newest.URL != "" {
			target = newest.URL
		}
	}

	if link, err := url.Parse(target); err == nil && link.IsAbs() {
		msg.ClickURL = link
		msg.Actions = []gotfy.ActionButton{
			&gotfy.ViewAction{
				Label: "Open Chapter",
				Link:  link,
				Clear: false,
			},
		}
	}

	return msg
}
