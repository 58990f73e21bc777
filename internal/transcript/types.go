package transcript

// Message is a single entry of an exported chat. Date and Time hold the literal
// header strings; they are parsed only where a calendar day or a clock position
// is needed.
type Message struct {
	Date   string
	Time   string
	Sender string
	Text   string
}

// Report accounts for every byte of a transcript that did not end up in a
// message, so parse coverage loss is visible instead of silent.
type Report struct {
	TotalBytes      int `json:"total_bytes"`
	Headers         int `json:"headers"`
	SystemLines     int `json:"system_lines"`
	Messages        int `json:"messages"`
	DroppedMedia    int `json:"dropped_media"`
	DroppedDeleted  int `json:"dropped_deleted"`
	UnparsedDates   int `json:"unparsed_dates"`
	UncapturedBytes int `json:"uncaptured_bytes"`
	UncapturedLines int `json:"uncaptured_lines"`
}

// Coverage is the fraction of input bytes that were captured by a header or a
// message body. An empty transcript has full coverage.
func (r Report) Coverage() float64 {
	if r.TotalBytes == 0 {
		return 1
	}
	return 1 - float64(r.UncapturedBytes)/float64(r.TotalBytes)
}

// Dropped is the number of extracted messages removed by filtering.
func (r Report) Dropped() int {
	return r.DroppedMedia + r.DroppedDeleted
}
