package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	lserrors "lifesignal/internal/errors"
)

// File is the on-disk catalog layout: a list of [[source]] tables.
type File struct {
	Sources []Entry `toml:"source"`
}

// Load reads a catalog file and merges it over Defaults by ID: an entry
// with a known ID replaces the default, new IDs are added. A missing file
// yields the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(Defaults())
	}

	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(Defaults())
		}
		return nil, lserrors.New(lserrors.CatalogInvalid, "parsing "+path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, lserrors.New(lserrors.CatalogInvalid, fmt.Sprintf("unknown keys in %s: %s", path, strings.Join(keys, ", ")), nil)
	}

	return New(Merge(Defaults(), f.Sources))
}

// Merge overlays entries on base by ID, keeping base order for known IDs.
func Merge(base, overlay []Entry) []Entry {
	out := make([]Entry, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.ID] = i
	}
	for _, e := range overlay {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

// Write encodes entries as a catalog file, creating parent directories.
func Write(path string, entries []Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Encode renders entries in the catalog file format.
func Encode(entries []Entry) ([]byte, error) {
	body, err := gotoml.Marshal(File{Sources: entries})
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# lifesignal source catalog\n")
	buf.WriteString("# Entries replace the built-in source with the same id; new ids add sources.\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
