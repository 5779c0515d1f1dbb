// Package client defines the transport-neutral contract for vision models.
package client

import "context"

// Request is a single-turn prompt with one attached image
type Request struct {
	Model    string
	Prompt   string
	ImageB64 string
	// JSON asks the backend for its most deterministic sampling settings
	JSON bool
}

// VisionClient sends a request to a vision model and returns the raw text
// of its reply.
type VisionClient interface {
	Name() string
	Query(ctx context.Context, req Request) (string, error)
}
