package generation

import "context"

// Client sends a prompt to an AI model and returns the model's text reply.
type Client interface {
	// Chat performs one blocking model call. modelID selects the model;
	// an empty modelID uses the client's configured default.
	Chat(ctx context.Context, modelID, prompt string) (string, error)
}

// ClientFunc adapts an ordinary function to the Client interface.
type ClientFunc func(ctx context.Context, modelID, prompt string) (string, error)

// Chat calls f.
func (f ClientFunc) Chat(ctx context.Context, modelID, prompt string) (string, error) {
	return f(ctx, modelID, prompt)
}
