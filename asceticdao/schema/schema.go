package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fieldPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// Model describes one record type: where it is stored and which fields are unique.
type Model struct {
	Name   string   `yaml:"name"`
	Table  string   `yaml:"table"`
	Unique []string `yaml:"unique"`
}

// IsValidModelName reports whether name can address a model.
func IsValidModelName(name string) bool {
	return identifierPattern.MatchString(name)
}

// TableName derives the default table for a model: "BlogPost" -> "blog_posts".
func TableName(model string) string {
	return inflection.Plural(snake(model))
}

func snake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) && runes[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m Model) withDefaults() Model {
	if m.Table == "" {
		m.Table = TableName(m.Name)
	}
	return m
}

func (m Model) validate() error {
	if !IsValidModelName(m.Name) {
		return fmt.Errorf("invalid model name: %s", m.Name)
	}
	if !identifierPattern.MatchString(m.Table) {
		return fmt.Errorf("invalid table name %s for model %s", m.Table, m.Name)
	}
	for _, field := range m.Unique {
		if !fieldPattern.MatchString(field) {
			return fmt.Errorf("invalid unique field %s for model %s", field, m.Name)
		}
	}
	return nil
}

type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

func NewRegistry(models ...Model) (*Registry, error) {
	r := &Registry{models: make(map[string]Model)}
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(m Model) error {
	m = m.withDefaults()
	if err := m.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.Name]; ok {
		return fmt.Errorf("model %s is already registered", m.Name)
	}
	r.models[m.Name] = m
	return nil
}

func (r *Registry) Lookup(name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered models ordered by name.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

type document struct {
	Models []Model `yaml:"models"`
}

// LoadLocations registers the models declared in each location, in order.
// A location is a YAML file or a directory of *.yaml / *.yml files.
func LoadLocations(locations []string) (*Registry, error) {
	r, _ := NewRegistry()
	for _, location := range locations {
		files, err := modelFiles(location)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := r.loadFile(file); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func modelFiles(location string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, errors.Wrapf(err, "model location %s", location)
	}
	if !info.IsDir() {
		return []string{location}, nil
	}
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(location, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read models from %s", path)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "parse models from %s", path)
	}
	for _, m := range doc.Models {
		if err := r.Register(m); err != nil {
			return errors.Wrapf(err, "register models from %s", path)
		}
	}
	return nil
}
