// Package assistant asks a remote text-completion service questions about
// the journal.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pbaille/jot/internal/secret"
)

const (
	anthropicAPI = "https://api.anthropic.com/v1/messages"
	DefaultModel = "claude-sonnet-4-20250514"
)

// Kind classifies an assistant failure
type Kind int

const (
	MissingCredential Kind = iota + 1
	Network
	API
	Malformed
)

func (k Kind) String() string {
	switch k {
	case MissingCredential:
		return "missing credential"
	case Network:
		return "network error"
	case API:
		return "assistant error"
	case Malformed:
		return "malformed reply"
	default:
		return "unknown error"
	}
}

// Error is the only error type returned by Client.Ask
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client talks to the Anthropic Messages API
type Client struct {
	creds    secret.Source
	model    string
	endpoint string
	http     *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithModel overrides DefaultModel
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEndpoint points the client at another Messages API URL
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient replaces the default client, which times out after 60s
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client. The credential is read from creds on every call, so
// setting or deleting it takes effect without rebuilding the client.
func New(creds secret.Source, opts ...Option) *Client {
	c := &Client{
		creds:    creds,
		model:    DefaultModel,
		endpoint: anthropicAPI,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends question with the journal context and returns the reply text.
// Failures are *Error values and are never retried.
func (c *Client) Ask(ctx context.Context, question, journal string) (string, error) {
	apiKey, err := c.creds.Get()
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			return "", &Error{Kind: MissingCredential, Message: "set an API key with 'jot key set'", Err: err}
		}
		return "", &Error{Kind: MissingCredential, Message: err.Error(), Err: err}
	}

	return c.callAPI(ctx, apiKey, buildPrompt(question, journal))
}

const systemPrompt = `You are a thoughtful assistant helping someone reflect on their personal journal.
Answer using the journal entries provided. Be concise and refer to entries by title when useful.
If the entries do not contain the answer, say so.`

func buildPrompt(question, journal string) string {
	var sb strings.Builder

	if journal != "" {
		sb.WriteString("Recent journal entries:\n\n")
		sb.WriteString(journal)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))

	return sb.String()
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) callAPI(ctx context.Context, apiKey, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: Malformed, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", &Error{Kind: Network, Message: "create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: Network, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: Network, Message: "read response", Err: err}
	}

	var apiResp apiResponse
	decodeErr := json.Unmarshal(body, &apiResp)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if decodeErr == nil && apiResp.Error != nil {
			msg += ": " + apiResp.Error.Message
		}
		return "", &Error{Kind: API, Message: msg}
	}
	if decodeErr != nil {
		return "", &Error{Kind: Malformed, Message: "decode response", Err: decodeErr}
	}
	if apiResp.Error != nil {
		return "", &Error{Kind: API, Message: apiResp.Error.Message}
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", &Error{Kind: Malformed, Message: "empty response"}
	}

	return reply, nil
}
