package chunker

// Tag grammar of a chunk. Downstream consumers (including the companion's
// prompt builder) parse these strings back, so they must not change.
const (
	// Continuation joins consecutive messages of one speaker within a turn.
	Continuation = " <br>\n"
	// LineBreak is the bare marker a reader renders back into a line break.
	LineBreak = "<br>"
)

// Header is the first line of every chunk.
func Header(chatName string) string {
	return "<chat> " + chatName + " </chat>\n"
}

// OpenTurn starts a speaker's turn with its first message.
func OpenTurn(sender, text string) string {
	return "<" + sender + "> " + text
}

// CloseTurn ends a speaker's turn.
func CloseTurn(sender string) string {
	return " </" + sender + ">"
}

// continuation renders the text appended for a message given the speaker of
// the open turn ("" when the chunk has no turn yet).
func continuation(current, sender, text string) string {
	switch current {
	case sender:
		return Continuation + text
	case "":
		return OpenTurn(sender, text)
	default:
		return CloseTurn(current) + "\n" + OpenTurn(sender, text)
	}
}
