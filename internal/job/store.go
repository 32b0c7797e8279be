package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/g2b"
)

// snapshotFile is the on-disk shape of a crawl snapshot.
type snapshotFile struct {
	Timestamp  time.Time     `json:"timestamp"`
	TotalItems int           `json:"total_items"`
	Keywords   []string      `json:"keywords"`
	Results    []g2b.BidItem `json:"results"`
}

// SnapshotStore writes one timestamped JSON snapshot per finished job.
type SnapshotStore struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewSnapshotStore creates the snapshot directory if needed.
func NewSnapshotStore(dir string, logger *zap.Logger) (*SnapshotStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotStore{dir: dir, now: time.Now, logger: logger}, nil
}

// Save persists a snapshot, returning the written path. The filename carries
// the first keyword and the timestamp so runs are tellable apart at a glance.
func (s *SnapshotStore) Save(keywords []string, results []g2b.BidItem) (string, error) {
	now := s.now()
	label := "all"
	if len(keywords) > 0 {
		label = sanitizeLabel(keywords[0])
	}
	name := fmt.Sprintf("crawl_%s_%s.json", label, now.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	if results == nil {
		results = []g2b.BidItem{}
	}
	data, err := json.MarshalIndent(snapshotFile{
		Timestamp:  now,
		TotalItems: len(results),
		Keywords:   keywords,
		Results:    results,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("snapshot written", zap.String("path", path), zap.Int("items", len(results)))
	return path, nil
}

// sanitizeLabel makes a keyword safe for use in a filename.
func sanitizeLabel(s string) string {
	s = strings.TrimSpace(s)
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	runes := []rune(out)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	if len(runes) == 0 {
		return "all"
	}
	return string(runes)
}
