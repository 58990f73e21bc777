package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/output"
)

// FormatDailySummary formats a run's chunks grouped by date, then by chat.
func FormatDailySummary(m *Manifest, chunks []chunker.Chunk) string {
	type chatDay struct {
		chunks, messages, oversize int
	}

	byDate := make(map[string]map[string]*chatDay)
	for _, c := range chunks {
		date := c.Date.Format(output.DateLayout)
		if c.Date.IsZero() {
			date = "unknown"
		}
		chats, ok := byDate[date]
		if !ok {
			chats = make(map[string]*chatDay)
			byDate[date] = chats
		}
		d, ok := chats[c.ChatName]
		if !ok {
			d = &chatDay{}
			chats[c.ChatName] = d
		}
		d.chunks++
		d.messages += c.Messages
		if c.Oversize {
			d.oversize++
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("*Mimic Dataset Summary*\n")
	if m != nil {
		fmt.Fprintf(&sb, "run %s [%s]: %d files, %d chunks, %d messages, budget %d (%s)\n",
			m.RunID, m.Status, m.Totals.Files, m.Totals.Chunks, m.Totals.Messages, m.MaxContextLength, m.Encoding)
		if m.Totals.Failed > 0 || m.Totals.Duplicates > 0 {
			fmt.Fprintf(&sb, "%d failed, %d duplicate exports skipped\n", m.Totals.Failed, m.Totals.Duplicates)
		}
	}

	for _, date := range dates {
		chats := byDate[date]
		names := make([]string, 0, len(chats))
		total := 0
		for name, d := range chats {
			names = append(names, name)
			total += d.chunks
		}
		sort.Strings(names)

		fmt.Fprintf(&sb, "\n*%s* (%d chats, %d chunks)\n", date, len(names), total)
		for _, name := range names {
			d := chats[name]
			fmt.Fprintf(&sb, "  - %s: %d chunks, %d msgs", name, d.chunks, d.messages)
			if d.oversize > 0 {
				fmt.Fprintf(&sb, " (%d oversize)", d.oversize)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// FormatErrors lists the per-file and run-level errors of a run, or returns ""
// when there are none.
func FormatErrors(m *Manifest) string {
	var sb strings.Builder
	for _, f := range m.Files {
		if f.Error != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", f.File, f.Error)
		}
	}
	for _, e := range m.Errors {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	if sb.Len() == 0 {
		return ""
	}
	return "*Errors*\n" + sb.String()
}
