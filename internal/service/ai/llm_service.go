// Package ai is the gateway to the text-generation backend behind the
// Nexus. When Ark credentials are configured it drives an eino chain; in
// every other case, including failures and timeouts, it serves the scripted
// fallback so the broadcast pipeline always completes.
package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mkovach/nexus/backend/internal/config"
	promptModel "github.com/mkovach/nexus/backend/internal/model/prompt"
	model "github.com/mkovach/nexus/backend/internal/model/session"
	sessionService "github.com/mkovach/nexus/backend/internal/service/session"
)

// Service produces the Nexus's turns.
type Service struct {
	prompts  promptModel.Store
	fallback *Fallback
	chain    compose.Runnable[map[string]any, *schema.Message]
	timeout  time.Duration
}

// NewService wires the eino chain over the configured Ark model. Fails only
// when credentials are present but the model or chain cannot be built; use
// NewScripted when no backend is configured.
func NewService(ctx context.Context, prompts promptModel.Store, cfg config.AIConfig, fallback *Fallback) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		prompts:  prompts,
		fallback: fallback,
		chain:    runnable,
		timeout:  timeout,
	}, nil
}

// NewScripted returns a gateway that serves scripted responses only.
func NewScripted(prompts promptModel.Store, fallback *Fallback) *Service {
	return &Service{prompts: prompts, fallback: fallback, timeout: 30 * time.Second}
}

// PickTemplate selects the game mode for a session's first responder turn.
func (s *Service) PickTemplate() (id, system string) {
	items := s.prompts.List()
	if len(items) == 0 {
		return "", ""
	}
	t := items[s.fallback.intn(len(items))]
	return t.ID, t.System
}

// GenerateResponse produces the raw Nexus output for one turn. It never
// returns an error: a failed or timed-out generation is replaced by the
// scripted fallback for the turn's phase.
func (s *Service) GenerateResponse(ctx context.Context, turn sessionService.Turn) string {
	if s.chain == nil {
		return s.fallback.Respond(turn)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.chain.Invoke(ctx, buildChainInput(turn))
	if err != nil {
		log.Printf("[ai] generation failed for session=%s phase=%s, using fallback: %v", turn.SessionID, turn.Phase, err)
		return s.fallback.Respond(turn)
	}

	log.Printf("[ai] generated response for session=%s phase=%s length=%d", turn.SessionID, turn.Phase, len(response.Content))
	return response.Content
}

// buildChainInput maps the transcript onto the chain's template variables.
// The latest entry (the just-appended player input) becomes the query; the
// rest becomes history, with player turns prefixed by the speaker's name so
// the model can address individuals.
func buildChainInput(turn sessionService.Turn) map[string]any {
	messages := turn.Messages
	query := ""
	if n := len(messages); n > 0 && messages[n-1].Sender != model.SenderNexus {
		query = messages[n-1].Sender + ": " + messages[n-1].Content
		messages = messages[:n-1]
	}

	return map[string]any{
		"system":  turn.Template,
		"history": buildHistoryMessages(messages),
		"query":   query,
	}
}

func buildHistoryMessages(messages []model.Message) []*schema.Message {
	const historyLimit = 20

	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if msg.Sender == model.SenderNexus {
			history = append(history, schema.AssistantMessage(msg.Content, nil))
			continue
		}
		history = append(history, schema.UserMessage(msg.Sender+": "+msg.Content))
	}

	return history
}
