// Package llm provides chat-completion clients for response generation and
// query planning.
package llm

import (
	"context"

	"github.com/venturegraph/venturegraph/pkg/types"
)

// Client is the minimal chat interface the rest of the system depends on.
type Client interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)

	// Close cleans up resources.
	Close() error
}

// Config holds per-client model settings.
type Config struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Stop        []string
}
