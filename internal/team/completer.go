package team

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
)

// Completer produces one agent message from the conversation so far.
// availableTool is the agent's single optional tool; implementations must
// invoke it at most once per call.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message, availableTool tool.BaseTool) (string, error)
}

// EinoCompleter implements Completer on an Eino ToolCallingChatModel.
// When the model requests the bound tool, the tool runs exactly once and
// the model is called a second time with the tool result to produce the
// final text. Further tool requests in the follow-up are ignored.
type EinoCompleter struct {
	chatModel model.ToolCallingChatModel
}

// NewEinoCompleter constructs an EinoCompleter over the given chat model.
func NewEinoCompleter(chatModel model.ToolCallingChatModel) (*EinoCompleter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("team: chat model must not be nil")
	}
	return &EinoCompleter{chatModel: chatModel}, nil
}

// Complete runs the agent's single completion for this turn.
func (c *EinoCompleter) Complete(ctx context.Context, messages []*schema.Message, availableTool tool.BaseTool) (string, error) {
	chatModel := c.chatModel

	if availableTool != nil {
		info, err := availableTool.Info(ctx)
		if err != nil {
			return "", fmt.Errorf("team: tool info: %w", err)
		}
		chatModel, err = c.chatModel.WithTools([]*schema.ToolInfo{info})
		if err != nil {
			return "", fmt.Errorf("team: bind tool: %w", err)
		}
	}

	reply, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("team: completion failed: %w", err)
	}

	if availableTool == nil || len(reply.ToolCalls) == 0 {
		return reply.Content, nil
	}

	// The model asked for the tool: run it once and complete again with the
	// result in context.
	call := reply.ToolCalls[0]
	invokable, ok := availableTool.(tool.InvokableTool)
	if !ok {
		return "", fmt.Errorf("team: tool %q is not invokable", call.Function.Name)
	}

	logging.FromContext(ctx).Info("team: invoking tool",
		slog.String("tool", call.Function.Name),
	)

	result, err := invokable.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		// Tool contract violations (malformed arguments) degrade into text
		// the model can react to; they must not abort the turn.
		result = fmt.Sprintf("Tool error: %v", err)
	}

	followUp := make([]*schema.Message, 0, len(messages)+2)
	followUp = append(followUp, messages...)
	followUp = append(followUp, reply, schema.ToolMessage(result, call.ID))

	final, err := chatModel.Generate(ctx, followUp)
	if err != nil {
		return "", fmt.Errorf("team: completion after tool call failed: %w", err)
	}
	return final.Content, nil
}
