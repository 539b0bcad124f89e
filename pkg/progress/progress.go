// Package progress is the client side of the live-progress gateway. It
// subscribes to a generation job's event feed, preferring the websocket push
// channel and falling back to polling the job snapshot endpoint when push is
// unavailable. Both paths deliver the same event vocabulary.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/outfitly/outfitly/pkg/models"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 90
)

// ErrPollBudgetExhausted means the job did not reach a terminal state within
// the polling budget. The job itself keeps running server side.
var ErrPollBudgetExhausted = errors.New("job did not finish within the polling budget")

// Client subscribes to job progress. The zero value is not usable; create one
// with NewClient.
type Client struct {
	baseURL string
	apiKey  string

	// HTTPClient and Dialer may be replaced before the first Subscribe call.
	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// PollInterval and MaxPollAttempts bound the fallback path.
	PollInterval    time.Duration
	MaxPollAttempts int
}

// NewClient creates a progress client for the given API base URL and key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		Dialer:          websocket.DefaultDialer,
		PollInterval:    defaultPollInterval,
		MaxPollAttempts: defaultMaxPolls,
	}
}

// Subscription delivers job events. Events is closed when the job reaches a
// terminal state or the subscription fails; Err reports why after the close.
type Subscription struct {
	Events <-chan models.JobEvent

	mu  sync.Mutex
	err error
}

// Err returns the subscription failure, if any. Only meaningful after Events
// has been closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// deltaState tracks what has already been delivered so the polling fallback
// emits only new information.
type deltaState struct {
	outfitsSeen int
	lastPercent int
}

// Subscribe starts delivery of events for jobID. The websocket push channel
// is probed first; if the dial fails, or the stream drops before a terminal
// event, delivery transparently continues over polling.
func (c *Client) Subscribe(ctx context.Context, jobID uuid.UUID) (*Subscription, error) {
	if c.baseURL == "" {
		return nil, errors.New("progress: base URL is required")
	}

	ch := make(chan models.JobEvent, 16)
	sub := &Subscription{Events: ch}
	state := &deltaState{lastPercent: -1}

	conn, dialErr := c.dial(ctx, jobID)

	go func() {
		defer close(ch)

		if dialErr == nil {
			err := c.pump(ctx, conn, ch, state)
			conn.Close()
			if err == nil {
				return
			}
			// Mid-stream transport error: the snapshot endpoint carries
			// everything delivered so far, so polling picks up seamlessly.
		}
		sub.setErr(c.poll(ctx, jobID, ch, state))
	}()

	return sub, nil
}

// Subscribe is a convenience wrapper using a default client.
func Subscribe(ctx context.Context, baseURL, apiKey string, jobID uuid.UUID) (*Subscription, error) {
	return NewClient(baseURL, apiKey).Subscribe(ctx, jobID)
}

func (c *Client) dial(ctx context.Context, jobID uuid.UUID) (*websocket.Conn, error) {
	wsBase := strings.Replace(c.baseURL, "http", "ws", 1)
	url := fmt.Sprintf("%s/api/v1/outfits/%s/stream", wsBase, jobID)

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, resp, err := c.Dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// pump forwards websocket events until a terminal event or transport error.
// A nil return means the job finished and nothing more needs delivering.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn, ch chan<- models.JobEvent, state *deltaState) error {
	for {
		var ev models.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch ev.Type {
		case models.EventOutfit:
			state.outfitsSeen++
		case models.EventProgress:
			if ev.Percent > state.lastPercent {
				state.lastPercent = ev.Percent
			}
		}

		select {
		case ch <- ev:
		case <-ctx.Done():
			return nil
		}

		if ev.Type == models.EventComplete || ev.Type == models.EventError {
			return nil
		}
	}
}

// poll fetches job snapshots and translates them into delta events.
func (c *Client) poll(ctx context.Context, jobID uuid.UUID, ch chan<- models.JobEvent, state *deltaState) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	budget := c.MaxPollAttempts
	if budget <= 0 {
		budget = defaultMaxPolls
	}

	for attempt := 0; attempt < budget; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		job, err := c.fetch(ctx, jobID)
		if err != nil {
			var pe *permanentError
			if errors.As(err, &pe) {
				return err
			}
			continue // transient: retry on the next tick
		}

		done, err := emitDeltas(ctx, ch, job, state)
		if done || err != nil {
			return err
		}
	}
	return ErrPollBudgetExhausted
}

// emitDeltas sends what the snapshot contains beyond the already-delivered
// state. Returns done=true once a terminal event has been sent.
func emitDeltas(ctx context.Context, ch chan<- models.JobEvent, job *models.Job, state *deltaState) (bool, error) {
	send := func(ev models.JobEvent) error {
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i := state.outfitsSeen; i < len(job.Results); i++ {
		outfit := job.Results[i]
		if err := send(models.JobEvent{Type: models.EventOutfit, Index: i, Outfit: &outfit}); err != nil {
			return false, err
		}
	}
	state.outfitsSeen = len(job.Results)

	switch job.Status {
	case models.JobStatusComplete:
		return true, send(models.JobEvent{
			Type:      models.EventComplete,
			Percent:   100,
			Results:   job.Results,
			Reasoning: job.Reasoning,
		})
	case models.JobStatusFailed:
		return true, send(models.JobEvent{Type: models.EventError, Message: job.Error})
	}

	if job.Progress > state.lastPercent {
		state.lastPercent = job.Progress
		if err := send(models.JobEvent{Type: models.EventProgress, Percent: job.Progress}); err != nil {
			return false, err
		}
	}
	return false, nil
}

// permanentError marks API responses that retrying cannot fix.
type permanentError struct {
	code    string
	message string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("progress: %s: %s", e.code, e.message)
}

func (c *Client) fetch(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	url := fmt.Sprintf("%s/api/v1/outfits/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{code: body.Error.Code, message: body.Error.Message}
		}
		return nil, fmt.Errorf("progress: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Data models.Job `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("progress: decoding snapshot: %w", err)
	}
	return &body.Data, nil
}
