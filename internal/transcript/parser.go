package transcript

import (
	"regexp"
	"strings"
)

// boundaryRe matches the "<date>, <time> - " prefix every exported line starts
// with. Narrow and regular no-break spaces show up before AM/PM in newer exports.
var boundaryRe = regexp.MustCompile(`(?m)^(\d{1,2}/\d{1,2}/\d{2,4}), (\d{1,2}:\d{2}(?:[ \t\x{00A0}\x{202F}]*[AaPp]\.?[Mm]\.?)?) - `)

// senderRe matches the sender that follows a boundary on a message line.
// System lines ("Messages and calls are end-to-end encrypted...") have none.
var senderRe = regexp.MustCompile(`^([^:\n]+): `)

// Parse extracts and filters the messages of one transcript.
func Parse(raw string) ([]Message, Report) {
	msgs, report := Extract(raw)
	kept := Filter(msgs, &report)
	return kept, report
}

// Extract scans raw transcript text into messages in transcript order.
//
// All boundary positions are located first; a message body is the text between
// the end of its header and the start of the next boundary (or end of input).
// Text before the first boundary and system lines are counted as uncaptured.
func Extract(raw string) ([]Message, Report) {
	text := stripMarks(raw)
	report := Report{TotalBytes: len(strings.TrimSpace(text))}

	locs := boundaryRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		report.uncaptured(text)
		return nil, report
	}
	report.uncaptured(text[:locs[0][0]])

	var msgs []Message
	for i, loc := range locs {
		segEnd := len(text)
		if i+1 < len(locs) {
			segEnd = locs[i+1][0]
		}
		rest := text[loc[1]:segEnd]

		m := senderRe.FindStringSubmatchIndex(rest)
		if m == nil {
			report.SystemLines++
			report.uncaptured(text[loc[0]:segEnd])
			continue
		}

		report.Headers++
		msgs = append(msgs, Message{
			Date:   text[loc[2]:loc[3]],
			Time:   text[loc[4]:loc[5]],
			Sender: rest[m[2]:m[3]],
			Text:   strings.TrimSpace(rest[m[1]:]),
		})
	}

	return msgs, report
}

func (r *Report) uncaptured(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	r.UncapturedBytes += len(s)
	r.UncapturedLines += strings.Count(s, "\n") + 1
}

// stripMarks removes byte-order and directional marks that some clients put in
// front of header lines; left in place they stop a header from matching.
func stripMarks(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\ufeff', '\u200e', '\u200f':
			return -1
		default:
			return r
		}
	}, s)
}
