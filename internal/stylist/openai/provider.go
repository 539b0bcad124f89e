// Package openai implements the outfit provider against the OpenAI Chat
// Completions API. Each outfit is one completion request, so the stream is
// genuinely lazy: a job that fails midway has only been billed for the
// outfits it produced.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/outfitly/outfitly/internal/config"
	"github.com/outfitly/outfitly/pkg/models"
)

// Sentinel errors for provider failures.
var (
	ErrUnavailable     = errors.New("openai unreachable")
	ErrRequestFailed   = errors.New("openai request failed")
	ErrInvalidResponse = errors.New("openai returned invalid response")
)

const systemPrompt = "You are a personal stylist. Respond with exactly one JSON object " +
	`of the form {"title": string, "items": [{"category": string, "name": string, "color": string}], ` +
	`"note": string, "rationale": string} and nothing else.`

// Provider implements models.OutfitProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Generate(_ context.Context, req models.OutfitRequest) (models.OutfitStream, error) {
	return &stream{provider: p, req: req}, nil
}

// stream pulls one completion per outfit, feeding back the titles already
// produced so the model does not repeat itself.
type stream struct {
	provider  *Provider
	req       models.OutfitRequest
	produced  []string
	reasoning strings.Builder
	failed    bool
}

func (s *stream) Next(ctx context.Context) (models.Outfit, error) {
	if s.failed || len(s.produced) >= s.req.Count {
		return models.Outfit{}, io.EOF
	}

	outfit, rationale, err := s.provider.generateOne(ctx, s.req, s.produced)
	if err != nil {
		s.failed = true
		return models.Outfit{}, err
	}

	s.produced = append(s.produced, outfit.Title)
	if s.req.IncludeReasoning && rationale != "" {
		fmt.Fprintf(&s.reasoning, "%d. %s\n", len(s.produced), rationale)
	}
	return outfit, nil
}

func (s *stream) Reasoning() string { return s.reasoning.String() }

func (s *stream) Close() error { return nil }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type outfitPayload struct {
	Title string `json:"title"`
	Items []struct {
		Category string `json:"category"`
		Name     string `json:"name"`
		Color    string `json:"color"`
	} `json:"items"`
	Note      string `json:"note"`
	Rationale string `json:"rationale"`
}

func (p *Provider) generateOne(ctx context.Context, req models.OutfitRequest, produced []string) (models.Outfit, string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req, produced)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return models.Outfit{}, "", fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/chat/completions", p.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.Outfit{}, "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.Outfit{}, "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Outfit{}, "", fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return models.Outfit{}, "", fmt.Errorf("decoding response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return models.Outfit{}, "", fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	var payload outfitPayload
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &payload); err != nil {
		return models.Outfit{}, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if payload.Title == "" || len(payload.Items) == 0 {
		return models.Outfit{}, "", fmt.Errorf("%w: missing title or items", ErrInvalidResponse)
	}

	outfit := models.Outfit{Title: payload.Title, Note: payload.Note}
	for _, item := range payload.Items {
		outfit.Items = append(outfit.Items, models.OutfitPiece{
			Category: item.Category,
			Name:     item.Name,
			Color:    item.Color,
		})
	}
	return outfit, payload.Rationale, nil
}

func buildPrompt(req models.OutfitRequest, produced []string) string {
	var b strings.Builder
	switch req.Mode {
	case models.ModeAnchor:
		fmt.Fprintf(&b, "Build an outfit around the anchor garment %s.", req.AnchorItemID)
	default:
		fmt.Fprintf(&b, "Suggest an outfit for this occasion: %s.", req.Occasion)
	}
	if len(req.Constraints) > 0 {
		fmt.Fprintf(&b, " Constraints: %s.", strings.Join(req.Constraints, "; "))
	}
	if len(produced) > 0 {
		fmt.Fprintf(&b, " Do not repeat these looks: %s.", strings.Join(produced, ", "))
	}
	return b.String()
}

// classifyError maps transport errors onto sentinel errors.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

var _ models.OutfitProvider = (*Provider)(nil)
