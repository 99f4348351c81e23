package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// Providers sit behind this interface so the assistant endpoints do not
// care which model serves them.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
