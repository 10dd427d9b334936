package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"campushub/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	status     int
	messages   []models.Message
	serverTime time.Time
}

// fakeAPI answers polls from a script and records the since values it saw
type fakeAPI struct {
	mu     sync.Mutex
	steps  []step
	sinces []string
	auth   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sinces = append(f.sinces, r.URL.Query().Get("since"))
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	if len(f.steps) == 0 {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s := f.steps[0]
	f.steps = f.steps[1:]

	if s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}
	if !s.serverTime.IsZero() {
		w.Header().Set(ServerTimeHeader, s.serverTime.Format(time.RFC3339Nano))
	}
	msgs := s.messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	json.NewEncoder(w).Encode(msgs)
}

func (f *fakeAPI) seen() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sinces...), append([]string(nil), f.auth...)
}

func msg(id string, at time.Time) models.Message {
	text := "m" + id
	return models.Message{ID: id, AuthorID: "u1", Text: &text, CreatedAt: at, Attachments: []models.AttachmentRef{}}
}

func newPoller(t *testing.T, api *fakeAPI) *Poller {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewPoller(Config{
		BaseURL:         srv.URL,
		Token:           "tok",
		GroupID:         "g1",
		Interval:        10 * time.Millisecond,
		RetryInitial:    5 * time.Millisecond,
		RetryMaxElapsed: time.Second,
	}, nil)
}

func TestFetchAdvancesWatermarkToServerTime(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{steps: []step{
		{status: http.StatusOK, messages: []models.Message{msg("1", t0), msg("2", t0.Add(time.Second))}, serverTime: t0.Add(5 * time.Second)},
		{status: http.StatusOK, serverTime: t0.Add(9 * time.Second)},
	}}
	p := newPoller(t, api)

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t0.Add(5*time.Second), *p.Since())

	got, err = p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	sinces, auth := api.seen()
	assert.Equal(t, []string{"", t0.Add(5 * time.Second).Format(time.RFC3339Nano)}, sinces)
	assert.Equal(t, "Bearer tok", auth[0])
}

func TestFetchDropsAlreadyDeliveredIDs(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{steps: []step{
		{status: http.StatusOK, messages: []models.Message{msg("1", t0)}},
		{status: http.StatusOK, messages: []models.Message{msg("1", t0), msg("2", t0.Add(time.Second))}},
	}}
	p := newPoller(t, api)

	first, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	// Without a server time header the last createdAt becomes the watermark
	assert.Equal(t, t0, *p.Since())

	second, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "2", second[0].ID)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{steps: []step{
		{status: http.StatusServiceUnavailable},
		{status: http.StatusInternalServerError},
		{status: http.StatusOK, messages: []models.Message{msg("1", t0)}, serverTime: t0},
	}}
	p := newPoller(t, api)

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	sinces, _ := api.seen()
	assert.Len(t, sinces, 3)
}

func TestFetchStopsOnForbidden(t *testing.T) {
	api := &fakeAPI{steps: []step{{status: http.StatusForbidden}}}
	p := newPoller(t, api)

	_, err := p.Fetch(context.Background())
	assert.True(t, errors.Is(err, ErrAccessLost))
	sinces, _ := api.seen()
	assert.Len(t, sinces, 1)
}

func TestRunDeliversInOrderUntilAccessLost(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{steps: []step{
		{status: http.StatusOK, messages: []models.Message{msg("1", t0)}, serverTime: t0},
		{status: http.StatusOK, messages: []models.Message{msg("2", t0.Add(time.Second)), msg("3", t0.Add(2 * time.Second))}, serverTime: t0.Add(2 * time.Second)},
	}}
	p := newPoller(t, api)

	var ids []string
	err := p.Run(context.Background(), func(m models.Message) {
		ids = append(ids, m.ID)
	})
	assert.True(t, errors.Is(err, ErrAccessLost))
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestRunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{steps: []step{
		{status: http.StatusOK}, {status: http.StatusOK}, {status: http.StatusOK},
	}}
	p := newPoller(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, func(models.Message) {})
	assert.ErrorIs(t, err, context.Canceled)
}
