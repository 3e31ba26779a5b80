package conversation

import "context"

// LLMRequest is one labelling call: fixed instructions plus the message
// under classification. Clients run it at temperature zero.
type LLMRequest struct {
	Instructions string
	Prompt       string
	MaxTokens    int32
}

// LLMResponse carries the raw model reply and which provider produced it.
type LLMResponse struct {
	Text     string
	Provider string
}

// LLMClient is the language-model capability used for intent labelling.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
