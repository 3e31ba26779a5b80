package conversation

import (
	"context"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// FallbackLLMClient asks a secondary model when the primary fails. A nil
// secondary makes it a pass-through.
type FallbackLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil || c.secondary == nil || ctx.Err() != nil {
		return resp, err
	}

	c.logger.Warn("primary label model failed, trying secondary", "error", err)
	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		c.logger.Error("both label models failed", "primary_error", err, "secondary_error", secondaryErr)
		return LLMResponse{}, secondaryErr
	}
	return resp, nil
}
