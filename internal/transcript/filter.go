package transcript

import "strings"

// MediaPlaceholder is what the exporting client writes in place of an attachment.
const MediaPlaceholder = "<Media omitted>"

// deletedNotices are matched case-insensitively.
var deletedNotices = []string{
	"deleted this message",
	"message was deleted",
}

// Filter drops media placeholders and deletion notices, keeping the relative
// order of what remains. Drop counts and the kept total are recorded in report
// when it is non-nil.
func Filter(msgs []Message, report *Report) []Message {
	var kept []Message
	var media, deleted int
	for _, m := range msgs {
		switch {
		case strings.Contains(m.Text, MediaPlaceholder):
			media++
		case isDeletedNotice(m.Text):
			deleted++
		default:
			kept = append(kept, m)
		}
	}

	if report != nil {
		report.DroppedMedia += media
		report.DroppedDeleted += deleted
		report.Messages = len(kept)
	}
	return kept
}

func isDeletedNotice(text string) bool {
	lower := strings.ToLower(text)
	for _, n := range deletedNotices {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
