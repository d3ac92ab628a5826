package ai

import "context"

// ImagePart is an inline image attached to a multimodal request
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// Request is one chat-style call to the external model
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Images       []ImagePart
	MaxTokens    int
}

// Client port to the external LLM provider. Analyze returns the raw text
// reply; structured parsing happens upstream.
type Client interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
