package assistant

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIResponder answers questions directly through OpenAI. It is the
// fallback for local development when no backend URL is configured; it has
// no transcript of its own (pair it with NoHistory).
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

func NewOpenAIResponder(apiKey, model string) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *OpenAIResponder) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: promptForMode(req.Mode)},
			{Role: openai.ChatMessageRoleUser, Content: req.Question},
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("openai request failed")
		return nil, errors.Wrap(err, "assistant: openai")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("assistant: openai returned no choices")
	}

	return &AskResponse{
		Response: resp.Choices[0].Message.Content,
		Mode:     req.Mode,
		Intent:   "chat",
	}, nil
}
