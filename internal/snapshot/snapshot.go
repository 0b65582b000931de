// Package snapshot archives assembled Contexts for diagnosis. Snapshots are
// write-only from the pipeline's point of view: nothing reads them back to
// answer a question.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"lifesignal/internal/envelope"
)

// Extension is the file suffix of a snapshot.
const Extension = ".json.zst"

const nameTimeLayout = "20060102T150405Z"

// Record is what a snapshot file holds.
type Record struct {
	RunID     string            `json:"runId"`
	CreatedAt time.Time         `json:"createdAt"`
	Question  string            `json:"question,omitempty"`
	Context   *envelope.Context `json:"context"`
	// NarrationError is set when the context was built but narration failed.
	NarrationError string `json:"narrationError,omitempty"`
}

// Entry describes a stored snapshot.
type Entry struct {
	Name      string
	Path      string
	RunID     string
	CreatedAt time.Time
	Size      int64
}

// Store keeps snapshots in one directory.
type Store struct {
	dir    string
	retain int
	logger *slog.Logger
}

// NewStore returns a store rooted at dir keeping at most retain snapshots
// (0 keeps everything).
func NewStore(dir string, retain int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, retain: retain, logger: logger}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save compresses rec into the store and prunes old snapshots. It returns
// the written path.
func (s *Store) Save(rec Record) (string, error) {
	if rec.Context == nil {
		return "", fmt.Errorf("snapshot has no context")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", err
	}
	compressed := enc.EncodeAll(data, nil)
	_ = enc.Close()

	name := rec.CreatedAt.UTC().Format(nameTimeLayout) + "-" + rec.RunID + Extension
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved", "path", path, "bytes", len(compressed), "raw_bytes", len(data))

	if s.retain > 0 {
		if removed, err := s.Prune(s.retain); err != nil {
			s.logger.Warn("snapshot prune failed", "error", err)
		} else if removed > 0 {
			s.logger.Debug("snapshots pruned", "removed", removed)
		}
	}
	return path, nil
}

// Load reads a snapshot by path or by name within the store.
func (s *Store) Load(nameOrPath string) (*Record, error) {
	path := nameOrPath
	if !strings.ContainsRune(nameOrPath, os.PathSeparator) {
		path = filepath.Join(s.dir, nameOrPath)
	}
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %s: %w", filepath.Base(path), err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// List returns stored snapshots, newest first.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, Extension) {
			continue
		}
		stamp, runID, ok := strings.Cut(strings.TrimSuffix(name, Extension), "-")
		if !ok {
			continue
		}
		created, err := time.Parse(nameTimeLayout, stamp)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Name:      name,
			Path:      filepath.Join(s.dir, name),
			RunID:     runID,
			CreatedAt: created,
			Size:      info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Prune deletes all but the newest retain snapshots and returns how many
// were removed.
func (s *Store) Prune(retain int) (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := retain; i < len(entries); i++ {
		if err := os.Remove(entries[i].Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
