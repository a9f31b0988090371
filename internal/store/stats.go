package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stats holds per-tier counts for one user namespace.
type Stats struct {
	Root  string      `json:"root"`
	User  string      `json:"user"`
	Tiers []TierStats `json:"tiers"`
}

// TierStats holds the count and on-disk size of one tier. Damaged means the
// count only covers what could be read.
type TierStats struct {
	Tier      string `json:"tier"`
	Count     int    `json:"count"`
	Path      string `json:"path,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Damaged   bool   `json:"damaged,omitempty"`
}

// FileSize returns the size of path, or 0 when it does not exist.
func FileSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}

// ListNamespaces returns the user ids that have data in any tier under root.
func ListNamespaces(root string) ([]string, error) {
	seen := map[string]bool{}
	for _, tier := range []string{TierShortTerm, TierMidTerm, TierLongTerm, TierArchive} {
		entries, err := os.ReadDir(filepath.Join(root, tier))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if strings.HasSuffix(name, ".tmp") {
				continue
			}
			for _, ext := range []string{".jsonl.gz", ".db-wal", ".db-shm", ".db", ".json"} {
				if strings.HasSuffix(name, ext) {
					seen[strings.TrimSuffix(name, ext)] = true
					break
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}
