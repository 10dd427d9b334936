// Package client is a polling client for the group chat API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campushub/server/internal/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ServerTimeHeader must match the header the API sets on poll responses
const ServerTimeHeader = "X-Server-Time"

// seenLimit bounds the ids remembered for duplicate suppression
const seenLimit = 1000

// ErrAccessLost is returned once the server refuses the caller for the group
var ErrAccessLost = errors.New("access to group lost")

// Config configures a Poller
type Config struct {
	BaseURL  string
	Token    string
	GroupID  string
	Interval time.Duration

	// Retry settings for transient failures
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration

	HTTPClient *http.Client
}

// Poller fetches new messages of one group
type Poller struct {
	cfg   Config
	http  *http.Client
	log   *zap.Logger
	since *time.Time

	seen      map[string]struct{}
	seenOrder []string
}

// NewPoller creates a poller that starts from the beginning of the group
func NewPoller(cfg Config, log *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 4 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = time.Minute
	}
	if cfg.GroupID == "" {
		cfg.GroupID = models.DefaultGroupID
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Poller{
		cfg:  cfg,
		http: cfg.HTTPClient,
		log:  log,
		seen: make(map[string]struct{}),
	}
}

// Since returns the current watermark, nil before the first successful poll
func (p *Poller) Since() *time.Time {
	return p.since
}

// StartFrom sets the watermark so only messages after t are fetched
func (p *Poller) StartFrom(t time.Time) {
	p.since = &t
}

// Run polls every interval and calls handle for each new message in order.
// It returns ctx.Err() on cancellation or ErrAccessLost when the server
// refuses the caller.
func (p *Poller) Run(ctx context.Context, handle func(models.Message)) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		msgs, err := p.Fetch(ctx)
		switch {
		case errors.Is(err, ErrAccessLost):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.log.Warn("poll failed", zap.String("group_id", p.cfg.GroupID), zap.Error(err))
		}
		for _, m := range msgs {
			handle(m)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Fetch performs one poll, retrying transient failures, and returns the
// messages not delivered before. The watermark advances to the server time
// of the response.
func (p *Poller) Fetch(ctx context.Context) ([]models.Message, error) {
	var (
		batch      []models.Message
		serverTime *time.Time
	)

	operation := func() error {
		msgs, st, err := p.fetchOnce(ctx)
		if err != nil {
			return err
		}
		batch, serverTime = msgs, st
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryInitial
	b.MaxElapsedTime = p.cfg.RetryMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	fresh := make([]models.Message, 0, len(batch))
	for _, m := range batch {
		if p.markSeen(m.ID) {
			fresh = append(fresh, m)
		}
	}

	switch {
	case serverTime != nil:
		p.since = serverTime
	case len(batch) > 0:
		last := batch[len(batch)-1].CreatedAt
		p.since = &last
	}
	return fresh, nil
}

func (p *Poller) fetchOnce(ctx context.Context) ([]models.Message, *time.Time, error) {
	u := fmt.Sprintf("%s/api/v1/groups/%s/messages", p.cfg.BaseURL, url.PathEscape(p.cfg.GroupID))
	if p.since != nil {
		u += "?since=" + url.QueryEscape(p.since.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, backoff.Permanent(err)
	}
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrAccessLost, resp.StatusCode))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, nil, fmt.Errorf("server returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var msgs []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("failed to decode messages: %w", err))
	}

	var serverTime *time.Time
	if raw := resp.Header.Get(ServerTimeHeader); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			serverTime = &t
		}
	}
	return msgs, serverTime, nil
}

// markSeen records id and reports whether it was new
func (p *Poller) markSeen(id string) bool {
	if _, ok := p.seen[id]; ok {
		return false
	}
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	if len(p.seenOrder) > seenLimit {
		delete(p.seen, p.seenOrder[0])
		p.seenOrder = p.seenOrder[1:]
	}
	return true
}
