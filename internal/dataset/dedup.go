package dataset

import (
	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

// overlapThreshold is the fraction of each file's message keys that must
// appear in the other for two exports to count as the same chat.
const overlapThreshold = 0.8

// fingerprint identifies the messages of one export by (date, time, sender).
type fingerprint struct {
	File string
	Keys map[string]struct{}
}

func messageKey(m transcript.Message) string {
	return m.Date + "\x00" + m.Time + "\x00" + m.Sender
}

func buildFingerprint(file string, msgs []transcript.Message) fingerprint {
	fp := fingerprint{File: file, Keys: make(map[string]struct{}, len(msgs))}
	for _, m := range msgs {
		fp.Keys[messageKey(m)] = struct{}{}
	}
	return fp
}

// covered reports whether at least overlapThreshold of a's keys appear in b.
func covered(a, b fingerprint) bool {
	if len(a.Keys) == 0 {
		return false
	}
	matches := 0
	for k := range a.Keys {
		if _, ok := b.Keys[k]; ok {
			matches++
		}
	}
	return float64(matches)/float64(len(a.Keys)) >= overlapThreshold
}

// overlaps reports whether a and b cover each other. A later export that
// extends an earlier one is not covered by it and so never matches.
func overlaps(a, b fingerprint) bool {
	return covered(a, b) && covered(b, a)
}

// findDuplicates walks fingerprints in order and maps each file that repeats
// a kept file to that file. Of two matching files the one with more keys is
// kept; on a tie the earlier one wins.
func findDuplicates(fps []fingerprint) map[string]string {
	duplicates := make(map[string]string)
	var kept []fingerprint
	for _, fp := range fps {
		idx := -1
		for i, k := range kept {
			if overlaps(k, fp) {
				idx = i
				break
			}
		}
		if idx < 0 {
			kept = append(kept, fp)
			continue
		}

		k := kept[idx]
		if len(fp.Keys) <= len(k.Keys) {
			duplicates[fp.File] = k.File
			continue
		}
		kept[idx] = fp
		for file, of := range duplicates {
			if of == k.File {
				duplicates[file] = fp.File
			}
		}
		duplicates[k.File] = fp.File
	}
	return duplicates
}

// residuals returns, per dropped file, the messages whose keys are absent from
// the file kept in its place and from every earlier dropped file of the same
// group. fps must be in file order.
func residuals(fps []fingerprint, msgs map[string][]transcript.Message, duplicates map[string]string) map[string][]transcript.Message {
	seen := make(map[string]map[string]struct{})
	for _, fp := range fps {
		if _, dropped := duplicates[fp.File]; !dropped {
			keys := make(map[string]struct{}, len(fp.Keys))
			for k := range fp.Keys {
				keys[k] = struct{}{}
			}
			seen[fp.File] = keys
		}
	}

	out := make(map[string][]transcript.Message)
	for _, fp := range fps {
		of, dropped := duplicates[fp.File]
		if !dropped {
			continue
		}
		keys := seen[of]
		var rest []transcript.Message
		var fresh []string
		for _, m := range msgs[fp.File] {
			k := messageKey(m)
			if _, ok := keys[k]; ok {
				continue
			}
			rest = append(rest, m)
			fresh = append(fresh, k)
		}
		for _, k := range fresh {
			keys[k] = struct{}{}
		}
		if len(rest) > 0 {
			out[fp.File] = rest
		}
	}
	return out
}
