// Package skills loads SKILL.md front-matter definitions from a workspace
// directory, split into a parser and a manager that owns the loaded set.
package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Filename is the expected name of a skill definition file.
const Filename = "SKILL.md"

// delimiter marks the start/end of the YAML frontmatter block.
const delimiter = "---"

// Entry is one parsed skill definition.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"-"`
	Path        string `yaml:"-"`
}

// ParseFile parses a single SKILL.md file.
func ParseFile(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse parses SKILL.md content rooted at skillPath.
func Parse(data []byte, skillPath string) (*Entry, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var entry Entry
	if err := yaml.Unmarshal(frontmatter, &entry); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if entry.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if entry.Description == "" {
		return nil, fmt.Errorf("skill description is required")
	}

	entry.Content = strings.TrimSpace(string(body))
	entry.Path = skillPath
	return &entry, nil
}

func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != delimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var front []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == delimiter {
			closed = true
			break
		}
		front = append(front, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return []byte(strings.Join(front, "\n")), []byte(strings.Join(body, "\n")), nil
}

// Manager tracks the currently-loaded skill set, reloaded wholesale on Sync.
type Manager struct {
	mu      sync.RWMutex
	root    string
	entries map[string]*Entry
}

// NewManager returns a manager that loads SKILL.md files under root.
func NewManager(root string) *Manager {
	return &Manager{root: root, entries: make(map[string]*Entry)}
}

// Sync walks root for SKILL.md files and replaces the loaded set, returning
// the names of skills that loaded successfully.
func (m *Manager) Sync() ([]string, error) {
	found := make(map[string]*Entry)

	err := filepath.WalkDir(m.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(path) != Filename {
			return nil
		}
		entry, perr := ParseFile(path)
		if perr != nil {
			return nil // skip malformed skill files rather than aborting the sync
		}
		found[entry.Name] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}

	m.mu.Lock()
	m.entries = found
	m.mu.Unlock()

	return names, nil
}

// Get returns a loaded skill by name.
func (m *Manager) Get(name string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

// List returns all currently-loaded skills.
func (m *Manager) List() []*Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}
