// Package companion chats with a model fine-tuned on the dataset, speaking the
// same tag grammar the dataset was written in.
package companion

import (
	"strings"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

// Turn is one line of the running conversation.
type Turn struct {
	Sender  string
	Content string
}

// BuildPrompt renders the conversation so far and leaves an open tag for
// respondAs, so the model continues as that persona.
func BuildPrompt(chatName string, turns []Turn, respondAs string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(chunker.Header(chatName), "\n"))
	for _, t := range turns {
		sb.WriteString("\n")
		sb.WriteString(chunker.OpenTurn(t.Sender, t.Content))
		sb.WriteString(chunker.CloseTurn(t.Sender))
	}
	sb.WriteString("\n<")
	sb.WriteString(respondAs)
	sb.WriteString(">")
	return sb.String()
}

// StopSequence is the closing tag that ends a reply from respondAs.
func StopSequence(respondAs string) string {
	return strings.TrimSpace(chunker.CloseTurn(respondAs))
}

// RenderReply turns in-message line breaks back into blank lines for display.
func RenderReply(reply string) string {
	return strings.ReplaceAll(reply, chunker.LineBreak, "\n\n")
}
