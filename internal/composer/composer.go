// Package composer merges the assembled context, the conversation history,
// and the new user message into the final prompt, and shapes the provider's
// reply for the caller.
package composer

import (
	"context"
	"fmt"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
)

const systemPreamble = "You are a helpful HR assistant. Use the following context to answer the user's question:\n\n"

// Composer sends the final prompt to the completion provider.
type Composer struct {
	llm contracts.CompletionService
}

func New(llm contracts.CompletionService) *Composer {
	return &Composer{llm: llm}
}

// buildMessages assembles the provider message list: an optional system
// message carrying the context, the flattened history, then the new user
// message.
func buildMessages(bundle *models.ContextBundle, query string, history []models.Turn) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(history)+2)
	if bundle != nil && bundle.Text != "" {
		messages = append(messages, models.ChatMessage{
			Role:    "system",
			Content: systemPreamble + bundle.Text,
		})
	}
	messages = append(messages, models.Flatten(history)...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: query})
	return messages
}

// Compose produces the full reply in one shot. Provider failures propagate
// to the caller; by this point all collaborator failures have already been
// absorbed into the context text.
func (c *Composer) Compose(ctx context.Context, bundle *models.ContextBundle, query string, history []models.Turn) (*models.Reply, error) {
	text, err := c.llm.Complete(ctx, buildMessages(bundle, query, history))
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}
	return replyFrom(bundle, text), nil
}

// ComposeStream streams the reply through fn and returns the fully drained
// reply afterwards, so the caller can persist the assistant turn only once
// the stream completed.
func (c *Composer) ComposeStream(ctx context.Context, bundle *models.ContextBundle, query string, history []models.Turn, fn func(*models.StreamChunk) error) (*models.Reply, error) {
	text, err := c.llm.CompleteStream(ctx, buildMessages(bundle, query, history), fn)
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}
	return replyFrom(bundle, text), nil
}

func replyFrom(bundle *models.ContextBundle, text string) *models.Reply {
	reply := &models.Reply{Text: text}
	if bundle != nil {
		reply.Chart = bundle.Chart
		reply.Rows = bundle.Rows
	}
	return reply
}
