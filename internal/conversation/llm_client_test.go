package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
	}
}

func TestBedrockLLMClientComplete(t *testing.T) {
	api := &fakeConverse{out: textOutput(" has_ticket \n")}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		Instructions: "return one label",
		Prompt:       "classify this",
		MaxTokens:    20,
	})
	require.NoError(t, err)
	assert.Equal(t, "has_ticket", resp.Text)
	assert.Equal(t, "bedrock", resp.Provider)

	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.Messages, 1)
	require.Len(t, api.input.System, 1)
	assert.Equal(t, int32(20), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
	assert.Equal(t, float32(0), aws.ToFloat32(api.input.InferenceConfig.Temperature))
}

func TestBedrockLLMClientErrors(t *testing.T) {
	api := &fakeConverse{err: errors.New("throttled")}
	client := NewBedrockLLMClient(api, "model")
	_, err := client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "throttled")

	api.err = nil
	api.out = &bedrockruntime.ConverseOutput{}
	_, err = client.Complete(context.Background(), LLMRequest{Prompt: "x"})
	assert.Error(t, err)

	_, err = NewBedrockLLMClient(api, "").Complete(context.Background(), LLMRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "model id is required")

	_, err = client.Complete(context.Background(), LLMRequest{Prompt: "  "})
	assert.ErrorContains(t, err, "prompt is empty")
}

func TestFallbackLLMClient(t *testing.T) {
	primary := &stubLLM{err: errors.New("gemini 503")}
	secondary := &stubLLM{text: "follow_up"}
	client := NewFallbackLLMClient(primary, secondary, logging.Discard())

	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "follow_up", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)

	primary.err = nil
	primary.text = "has_ticket"
	resp, err = client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "has_ticket", resp.Text)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackLLMClientSkipsFallbackWhenCancelled(t *testing.T) {
	primary := &stubLLM{err: context.Canceled}
	secondary := &stubLLM{text: "follow_up"}
	client := NewFallbackLLMClient(primary, secondary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(ctx, LLMRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, secondary.calls)

	_, err = NewFallbackLLMClient(primary, nil, nil).Complete(context.Background(), LLMRequest{})
	assert.Error(t, err)
}
