// Package manifest declares components, scripts and games in a YAML or JSON
// document and registers them on a runtime.
package manifest

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

	"gopkg.in/yaml.v3"

	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/script"
	"github.com/zeusync/playscope/internal/core/util"
)

var ErrInvalid = errors.New("invalid manifest")

// Manifest is the declarative description of a set of games.
type Manifest struct {
	Runtime    runtime.Config    `json:"runtime" yaml:"runtime"`
	Scripts    map[string]Script `json:"scripts" yaml:"scripts"`
	Components []Component       `json:"components" yaml:"components"`
	Games      []Game            `json:"games" yaml:"games"`

	// dir resolves relative script and asset paths.
	dir string
}

// Script is a tengo responder given either inline or as a file. Timeout
// takes any form util.ParseTime accepts ("250", "1.5s", "0:02").
type Script struct {
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type Component struct {
	Decl            string              `json:"decl" yaml:"decl"`
	CompleteOnStart bool                `json:"complete_on_start,omitempty" yaml:"complete_on_start,omitempty"`
	Requires        []string            `json:"requires,omitempty" yaml:"requires,omitempty"`
	Behaviors       []string            `json:"behaviors,omitempty" yaml:"behaviors,omitempty"`
	States          []State             `json:"states,omitempty" yaml:"states,omitempty"`
	Responders      map[string][]string `json:"responders,omitempty" yaml:"responders,omitempty"`
	Assets          []string            `json:"assets,omitempty" yaml:"assets,omitempty"`
}

type State struct {
	Actions []string `json:"actions" yaml:"actions"`
	Flags   string   `json:"flags" yaml:"flags"`
}

type Game struct {
	Selector   string              `json:"selector" yaml:"selector"`
	Component  string              `json:"component,omitempty" yaml:"component,omitempty"`
	Requires   []string            `json:"requires,omitempty" yaml:"requires,omitempty"`
	Responders map[string][]string `json:"responders,omitempty" yaml:"responders,omitempty"`
	Screens    []Screen            `json:"screens,omitempty" yaml:"screens,omitempty"`
	Entities   []Entity            `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// Screen matches a screen element by id or, when ID is empty, by index.
type Screen struct {
	ID              string              `json:"id,omitempty" yaml:"id,omitempty"`
	Index           int                 `json:"index,omitempty" yaml:"index,omitempty"`
	Component       string              `json:"component,omitempty" yaml:"component,omitempty"`
	CompleteOnStart bool                `json:"complete_on_start,omitempty" yaml:"complete_on_start,omitempty"`
	Requires        []string            `json:"requires,omitempty" yaml:"requires,omitempty"`
	Responders      map[string][]string `json:"responders,omitempty" yaml:"responders,omitempty"`
}

type Entity struct {
	Selector   string              `json:"selector" yaml:"selector"`
	Component  string              `json:"component,omitempty" yaml:"component,omitempty"`
	Requires   []string            `json:"requires,omitempty" yaml:"requires,omitempty"`
	Responders map[string][]string `json:"responders,omitempty" yaml:"responders,omitempty"`
}

// LoadJSON loads a manifest from a JSON reader.
func LoadJSON(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, m.Validate()
}

// LoadYAML loads a manifest from a YAML reader.
func LoadYAML(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, m.Validate()
}

// LoadFile picks the decoder from the file extension. Relative script and
// asset paths resolve against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m *Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		m, err = LoadJSON(bytes.NewReader(data))
	default:
		m, err = LoadYAML(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(abs)
	return m, nil
}

// Dir is the directory relative paths resolve against.
func (m *Manifest) Dir() string { return m.dir }

// Validate reports every structural problem at once.
func (m *Manifest) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	for name, s := range m.Scripts {
		if (s.File == "") == (s.Source == "") {
			bad("script %s needs exactly one of file or source", name)
		}
		if s.Timeout != "" {
			if _, err := util.ParseTime(s.Timeout); err != nil {
				bad("script %s timeout: %v", name, err)
			}
		}
	}
	checkResponders := func(owner string, responders map[string][]string) {
		for behavior, names := range responders {
			for _, name := range names {
				if _, ok := m.Scripts[name]; !ok {
					bad("%s responds to %s with unknown script %s", owner, behavior, name)
				}
			}
		}
	}
	for i, c := range m.Components {
		if strings.TrimSpace(c.Decl) == "" {
			bad("component %d has no decl", i)
			continue
		}
		for _, st := range c.States {
			if len(st.Actions) == 0 {
				bad("component %s declares a state without actions", c.Decl)
			}
		}
		checkResponders(c.Decl, c.Responders)
	}
	for i, g := range m.Games {
		if strings.TrimSpace(g.Selector) == "" {
			bad("game %d has no selector", i)
		}
		checkResponders(g.Selector, g.Responders)
		for _, sc := range g.Screens {
			checkResponders(g.Selector+" screen", sc.Responders)
		}
		for _, e := range g.Entities {
			if e.Selector == "" {
				bad("game %s declares an entity without selector", g.Selector)
			}
			checkResponders(e.Selector, e.Responders)
		}
	}
	return errors.Join(errs...)
}

// ScriptFiles maps absolute script paths to script names.
func (m *Manifest) ScriptFiles() map[string]string {
	out := make(map[string]string)
	for name, s := range m.Scripts {
		if s.File != "" {
			out[m.resolve(s.File)] = name
		}
	}
	return out
}

// ScriptNames lists declared scripts in name order.
func (m *Manifest) ScriptNames() []string {
	names := make([]string, 0, len(m.Scripts))
	for name := range m.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// options turns the script's settings into compile options.
func (m *Manifest) options(name string) []script.Option {
	d, err := util.ParseTime(m.Scripts[name].Timeout)
	if err != nil {
		return nil
	}
	return []script.Option{script.WithTimeout(d)}
}

func (m *Manifest) source(name string) ([]byte, error) {
	s := m.Scripts[name]
	if s.Source != "" {
		return []byte(s.Source), nil
	}
	return os.ReadFile(m.resolve(s.File))
}
