// Package ollama talks to an Ollama server through its Go SDK.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/photocomp/pkg/client"
)

// DefaultTimeout bounds a request whose context carries no deadline
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	api *api.Client
}

var _ client.VisionClient = (*Client)(nil)

// NewClient creates a client for the server at serverURL. Any path on the
// URL is ignored.
func NewClient(serverURL string, httpClient *http.Client) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", serverURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{api: api.NewClient(base, httpClient)}, nil
}

// Name implements client.VisionClient
func (c *Client) Name() string { return "ollama" }

// Query implements client.VisionClient with a non-streaming chat call
func (c *Client) Query(ctx context.Context, req client.Request) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	msg := api.Message{Role: "user", Content: req.Prompt}
	if req.ImageB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		msg.Images = []api.ImageData{api.ImageData(raw)}
	}

	stream := false
	chat := &api.ChatRequest{
		Model:    req.Model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Options:  options(req),
	}

	var reply strings.Builder
	err := c.api.Chat(ctx, chat, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}
	return reply.String(), nil
}

// options tunes sampling. MiniCPM-V 4.x needs a larger context for images.
func options(req client.Request) map[string]any {
	opts := map[string]any{}
	if req.JSON {
		opts["temperature"] = 0.1
	}

	m := strings.ToLower(req.Model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		opts["num_ctx"] = 4096
		if !req.JSON {
			opts["temperature"] = 0.7
			opts["top_p"] = 0.8
		}
	}
	return opts
}
