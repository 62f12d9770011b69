// Package drafter turns fetched support emails plus operator instructions
// into suggested reply text via the completions provider.
package drafter

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"github.com/halcyondesk/mailroom/pkg/ai"
	"github.com/halcyondesk/mailroom/pkg/graphmail"
)

const systemPrompt = "You are a customer support agent. Write professional, " +
	"helpful and concise support responses. Reply with the response text only, " +
	"no preamble and no sign-off placeholders."

// Fallback is returned whenever the completions provider fails. A broken
// draft must never block the operator from working with the original email.
const Fallback = "[automatic draft unavailable — please compose a reply manually]"

type Drafter struct {
	logger *log.Logger
	ai     ai.Completion
	model  string
}

func NewDrafter(logger *log.Logger, completion ai.Completion, model string) *Drafter {
	return &Drafter{
		logger: logger,
		ai:     completion,
		model:  model,
	}
}

// Draft produces reply text for an email. The provider is stateless, so the
// full email context travels with every call.
func (d *Drafter) Draft(ctx context.Context, email graphmail.Email, instruction string) string {
	prompt := fmt.Sprintf(
		"Client issue:\nSubject: %s\nFrom: %s <%s>\n\n%s\n\nInstruction from the support operator: %s",
		email.Subject, email.FromName, email.FromAddress, email.Body, instruction,
	)
	return d.complete(ctx, prompt)
}

// Refine rewrites an existing draft according to the operator's instruction.
// The previous draft is the only email context the provider sees.
func (d *Drafter) Refine(ctx context.Context, previousDraft string, instruction string) string {
	prompt := fmt.Sprintf(
		"Current draft response:\n%s\n\nRevise the draft according to this instruction from the support operator: %s",
		previousDraft, instruction,
	)
	return d.complete(ctx, prompt)
}

func (d *Drafter) complete(ctx context.Context, prompt string) string {
	message, err := d.ai.Completions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(prompt),
	}, d.model)
	if err != nil {
		d.logger.Error("Completion request failed, using fallback draft", "error", err)
		return Fallback
	}

	content := strings.TrimSpace(message.Content)
	if content == "" {
		d.logger.Error("Completion returned empty content, using fallback draft")
		return Fallback
	}
	return content
}
