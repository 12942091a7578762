package story

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of one story.
//
// Example:
//
//	id: the-red-hen
//	title: "The Red Hen"
//	level: 1
//	text: |
//	  The red hen has a nest. The nest is in the barn.
type File struct {
	// ID is the catalog identifier an attempt starts against.
	ID string `yaml:"id"`

	// Title is the story's display name.
	Title string `yaml:"title"`

	// Level is the difficulty tier (1–6).
	Level int `yaml:"level"`

	// Text is the full story text; it is split into the expected word
	// sequence on load.
	Text string `yaml:"text"`
}

// LoadFile reads and parses one story YAML file.
func LoadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("story: open %q: %w", path, err)
	}
	defer f.Close()

	sf, err := LoadFromReader(f)
	if err != nil {
		return File{}, fmt.Errorf("story: parse %q: %w", path, err)
	}
	return sf, nil
}

// LoadFromReader parses story YAML from r. The reader is consumed entirely;
// the caller closes it.
func LoadFromReader(r io.Reader) (File, error) {
	var sf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&sf); err != nil {
		return File{}, fmt.Errorf("story: decode yaml: %w", err)
	}
	if sf.ID == "" {
		return File{}, fmt.Errorf("story: decode yaml: id must be set")
	}
	if strings.TrimSpace(sf.Text) == "" {
		return File{}, fmt.Errorf("story: decode yaml: story %q has no text", sf.ID)
	}
	return sf, nil
}

// LoadDir builds a [Static] provider from every .yaml/.yml file directly in
// dir, in lexical order. A file that fails to parse or register aborts the
// load; a curriculum with a broken story should not half-start.
func LoadDir(dir string) (*Static, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("story: read catalog dir %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("story: catalog dir %q: no story files", dir)
	}

	s := NewStatic()
	for _, name := range names {
		sf, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := s.AddText(sf.ID, sf.Title, sf.Level, sf.Text); err != nil {
			return nil, fmt.Errorf("story: catalog %q: %w", name, err)
		}
	}
	return s, nil
}
