package llm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	out       *bedrockruntime.ConverseOutput
	err       error
}

func (f *fakeConverseAPI) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(4),
			TotalTokens:  aws.Int32(16),
		},
	}
}

func TestBedrockCompleteMapsRequestAndResponse(t *testing.T) {
	api := &fakeConverseAPI{out: converseTextOutput("  hello there  ")}
	c := NewBedrockClient(api)

	resp, err := c.Complete(context.Background(), Request{
		Model:  "us.amazon.nova-lite-v1:0",
		System: []string{"You classify intents."},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "book me tomorrow"},
			{Role: ChatRoleAssistant, Content: "sure"},
			{Role: ChatRoleUser, Content: "2pm"},
		},
		MaxTokens:   256,
		Temperature: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, string(brtypes.StopReasonEndTurn), resp.StopReason)
	assert.Equal(t, int32(16), resp.Usage.TotalTokens)

	require.NotNil(t, api.lastInput)
	assert.Equal(t, "us.amazon.nova-lite-v1:0", aws.ToString(api.lastInput.ModelId))
	assert.Len(t, api.lastInput.System, 1)
	assert.Len(t, api.lastInput.Messages, 3)
	require.NotNil(t, api.lastInput.InferenceConfig)
	assert.Equal(t, int32(256), aws.ToInt32(api.lastInput.InferenceConfig.MaxTokens))
}

func TestBedrockCompleteSystemRoleMessagesBecomeSystemBlocks(t *testing.T) {
	api := &fakeConverseAPI{out: converseTextOutput("ok")}
	c := NewBedrockClient(api)

	_, err := c.Complete(context.Background(), Request{
		Model: "m",
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "be terse"},
			{Role: ChatRoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, api.lastInput.System, 1)
	assert.Len(t, api.lastInput.Messages, 1)
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	c := NewBedrockClient(&fakeConverseAPI{})
	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestBedrockCompleteRejectsUnknownRole(t *testing.T) {
	c := NewBedrockClient(&fakeConverseAPI{out: converseTextOutput("ok")})
	_, err := c.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.Error(t, err)
}

func TestBedrockCompleteEmptyTextIsError(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "   "},
				},
			},
		},
	}}
	c := NewBedrockClient(api)
	_, err := c.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}
