package ai

import (
	"context"
	"encoding/json"
)

// Image is one photo sent to the vision model.
type Image struct {
	Data     []byte
	MIMEType string
	Category string // product category used in the prompt, e.g. "sweaters"
}

// Client is the vision model port. The returned JSON is opaque to callers.
type Client interface {
	Analyze(ctx context.Context, img Image) (json.RawMessage, error)
}
