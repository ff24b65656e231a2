// Package profile loads the policy profiles that steer planning, answer
// composition and the policy check tool.
package profile

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// DefaultID is returned for unknown profile ids.
const DefaultID = "default_v1"

// Profile describes a user's financial policy.
type Profile struct {
	ID                 string   `yaml:"id" json:"id"`
	Description        string   `yaml:"description" json:"description,omitempty"`
	RiskTolerance      string   `yaml:"risk_tolerance" json:"risk_tolerance"`
	BudgetingStyle     string   `yaml:"budgeting_style" json:"budgeting_style"`
	CommunicationStyle string   `yaml:"communication_style" json:"communication_style"`
	Priorities         []string `yaml:"priorities" json:"priorities"`
	Rules              []string `yaml:"rules" json:"rules"`
}

// Conservative reports whether the profile has a conservative risk tolerance.
func (p Profile) Conservative() bool {
	return strings.EqualFold(p.RiskTolerance, "conservative")
}

// AsMap renders the profile as a generic object for tool results.
func (p Profile) AsMap() map[string]any {
	return map[string]any{
		"id":                  p.ID,
		"risk_tolerance":      p.RiskTolerance,
		"budgeting_style":     p.BudgetingStyle,
		"communication_style": p.CommunicationStyle,
		"priorities":          append([]string(nil), p.Priorities...),
		"rules":               append([]string(nil), p.Rules...),
	}
}

// LoadBuiltin loads a built-in profile by id.
func LoadBuiltin(id string) (*Profile, error) {
	data, err := builtinFS.ReadFile("builtin/" + id + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: unknown profile %q: %w", id, err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: parse %q: %w", id, err)
	}
	return p, nil
}

// LoadFile loads a profile from a YAML file. The id defaults to the file name.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadFile: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadFile: parse %s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

func parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the ids of all built-in profiles.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasSuffix(n, ".yaml") {
			ids = append(ids, strings.TrimSuffix(n, ".yaml"))
		}
	}
	return ids, nil
}

// Store serves profiles by id. Unknown ids resolve to the default profile.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewStore loads every built-in profile.
func NewStore() (*Store, error) {
	ids, err := List()
	if err != nil {
		return nil, fmt.Errorf("profile.NewStore: %w", err)
	}
	s := &Store{profiles: make(map[string]Profile, len(ids))}
	for _, id := range ids {
		p, err := LoadBuiltin(id)
		if err != nil {
			return nil, err
		}
		s.profiles[p.ID] = *p
	}
	if _, ok := s.profiles[DefaultID]; !ok {
		return nil, fmt.Errorf("profile.NewStore: built-in %q missing", DefaultID)
	}
	return s, nil
}

// LoadDir adds every *.yaml profile in dir, replacing built-ins with the
// same id.
func (s *Store) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("profile.LoadDir: %w", err)
	}
	for _, path := range matches {
		p, err := LoadFile(path)
		if err != nil {
			return err
		}
		s.Put(*p)
	}
	return nil
}

// Put adds or replaces a profile.
func (s *Store) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Fetch returns the profile for id, or the default profile.
func (s *Store) Fetch(id string) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[id]; ok {
		return p
	}
	return s.profiles[DefaultID]
}

// IDs lists the known profile ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FormatForPrompt renders the profile as prompt text.
func FormatForPrompt(p Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Policy Profile: %s\n\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(p.Description))
	}
	fmt.Fprintf(&b, "- risk_tolerance: %s\n", p.RiskTolerance)
	fmt.Fprintf(&b, "- budgeting_style: %s\n", p.BudgetingStyle)
	fmt.Fprintf(&b, "- communication_style: %s\n\n", p.CommunicationStyle)

	if len(p.Priorities) > 0 {
		b.WriteString("### Priorities\n\n")
		for _, pr := range p.Priorities {
			fmt.Fprintf(&b, "- %s\n", pr)
		}
		b.WriteString("\n")
	}
	if len(p.Rules) > 0 {
		b.WriteString("### Rules\n\n")
		for _, r := range p.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	return b.String()
}
