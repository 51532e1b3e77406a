package digest

import (
	"context"
)

// NoOp is a digester that returns the headline block without calling any
// AI provider. It is the fallback when no API key is configured: the
// digest is then just the day's headline list.
type NoOp struct{}

// NewNoOp creates a new NoOp digester.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Digest returns the headline block truncated to the default character
// limit.
func (n *NoOp) Digest(_ context.Context, headlines string) (string, error) {
	if len(headlines) <= defaultCharLimit {
		return headlines, nil
	}
	return headlines[:defaultCharLimit] + "...", nil
}
