package keymap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a keymap file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for files whose extension has no decoder.
var ErrUnknownFormat = errors.New("unknown keymap format")

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTOML, FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Loader loads keymaps from configuration files.
type Loader struct {
	// searchPaths are directories to search for keymap files.
	searchPaths []string
}

// NewLoader creates a new keymap loader.
func NewLoader() *Loader {
	return &Loader{
		searchPaths: make([]string, 0),
	}
}

// AddSearchPath adds a directory to search for keymap files.
func (l *Loader) AddSearchPath(path string) {
	l.searchPaths = append(l.searchPaths, path)
}

// LoadFile loads a keymap file, choosing the decoder from its extension.
func (l *Loader) LoadFile(path string) (Keymap, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keymap file: %w", err)
	}
	defer f.Close()

	km, err := l.load(path, f, format)
	if err != nil {
		return nil, err
	}
	return km, nil
}

// LoadReader loads a keymap in the given format from a reader.
func (l *Loader) LoadReader(r io.Reader, format Format) (Keymap, error) {
	return l.load("<reader>", r, format)
}

// LoadAll loads every keymap file in the search paths and merges them in
// order, later files overriding earlier ones. Files that fail to load are
// reported together; the keymap of the remaining files is still returned.
func (l *Loader) LoadAll() (Keymap, error) {
	merged := make(Keymap)
	var errs []error

	for _, dir := range l.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("reading keymap dir %s: %w", dir, err))
			}
			continue
		}

		var paths []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if _, err := FormatFromPath(entry.Name()); err != nil {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
		sort.Strings(paths)

		for _, path := range paths {
			km, err := l.LoadFile(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			merged = merged.Merge(km)
		}
	}

	return merged, errors.Join(errs...)
}

func (l *Loader) load(source string, r io.Reader, format Format) (Keymap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading keymap: %w", err)
	}

	var config keymapConfig
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &config)
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, newParseError(source, err)
	}

	return config.keymap(source)
}

// keymapConfig is the file structure for keymap files.
type keymapConfig struct {
	Bindings map[string]bindingConfig `toml:"bindings" yaml:"bindings" json:"bindings"`
}

type bindingConfig struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Keybindings []string `toml:"keybindings" yaml:"keybindings" json:"keybindings"`
	TimeoutMS   int      `toml:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

func (c keymapConfig) keymap(source string) (Keymap, error) {
	km := make(Keymap, len(c.Bindings))
	for id, bc := range c.Bindings {
		if strings.TrimSpace(id) == "" {
			return nil, &ParseError{Path: source, Message: "empty binding identifier"}
		}

		keybindings := make([]string, 0, len(bc.Keybindings))
		for _, kb := range bc.Keybindings {
			if kb = strings.TrimSpace(kb); kb != "" {
				keybindings = append(keybindings, kb)
			}
		}
		if len(keybindings) == 0 {
			return nil, &ParseError{
				Path:    source,
				Message: fmt.Sprintf("binding %q has no keybindings", id),
			}
		}
		if bc.TimeoutMS < 0 {
			return nil, &ParseError{
				Path:    source,
				Message: fmt.Sprintf("binding %q has negative timeout_ms", id),
			}
		}

		name := bc.Name
		if name == "" {
			name = id
		}
		km[id] = Binding{
			Name:        name,
			Timeout:     time.Duration(bc.TimeoutMS) * time.Millisecond,
			Keybindings: keybindings,
		}
	}
	return km, nil
}

// Encode writes km in the given format. Subscribers are not encoded.
func Encode(w io.Writer, km Keymap, format Format) error {
	config := keymapConfig{Bindings: make(map[string]bindingConfig, len(km))}
	for id, b := range km {
		config.Bindings[id] = bindingConfig{
			Name:        b.Name,
			Keybindings: b.Keybindings,
			TimeoutMS:   int(b.Timeout / time.Millisecond),
		}
	}

	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(config)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(config)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ParseError represents an error while parsing a keymap file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func newParseError(source string, err error) *ParseError {
	pe := &ParseError{Path: source, Message: err.Error(), Err: err}

	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		pe.Line, pe.Column = decodeErr.Position()
	}
	return pe
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
