package companion

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

// Catalog lists the chat names and senders found in a data directory.
type Catalog struct {
	ChatNames []string
	Senders   []string
}

// LoadCatalog reads every export in dir. Exports that cannot be read are
// skipped.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	chats := make(map[string]struct{})
	senders := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !transcript.IsExport(e.Name()) {
			continue
		}
		name, text, err := transcript.ReadExport(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		chats[name] = struct{}{}
		msgs, _ := transcript.Extract(text)
		for _, m := range msgs {
			senders[m.Sender] = struct{}{}
		}
	}

	return &Catalog{ChatNames: sortedKeys(chats), Senders: sortedKeys(senders)}, nil
}

// Validate checks that the chat and both personas appear in the catalog.
func (c *Catalog) Validate(cfg Config) error {
	if !slices.Contains(c.ChatNames, cfg.ChatName) {
		return fmt.Errorf("chat name %q is incorrect, it should be one of %q", cfg.ChatName, c.ChatNames)
	}
	if !slices.Contains(c.Senders, cfg.Sender) {
		return fmt.Errorf("sender %q is incorrect, it should be one of %q", cfg.Sender, c.Senders)
	}
	if !slices.Contains(c.Senders, cfg.RespondAs) {
		return fmt.Errorf("respond-as %q is incorrect, it should be one of %q", cfg.RespondAs, c.Senders)
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
