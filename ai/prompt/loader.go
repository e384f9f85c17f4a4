// Package prompt loads versioned prompt templates for the pipeline agents.
// Templates live at <dir>/<version>/<agent_name>.txt and carry {name}
// substitution placeholders.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound marks a missing template for an (agent, version) pair.
var ErrTemplateNotFound = errors.New("prompt template not found")

// Manifest describes one prompt bundle: its logic version and the agent
// templates it ships.
type Manifest struct {
	Version string   `yaml:"version"`
	Agents  []string `yaml:"agents"`
}

// Loader loads and caches prompt templates for one logic version. Templates
// are cached per (version, agent) pair for the process lifetime; the cache can
// be cleared explicitly for tests or hot version swaps.
type Loader struct {
	dir     string
	version string
	cache   sync.Map
}

// NewLoader creates a loader rooted at dir, serving the given logic version.
func NewLoader(dir, version string) *Loader {
	return &Loader{dir: dir, version: version}
}

// Version returns the logic (prompt-bundle) version this loader serves.
func (l *Loader) Version() string {
	return l.version
}

func (l *Loader) path(agentName string) string {
	return filepath.Join(l.dir, l.version, agentName+".txt")
}

// Load returns the template text for an agent, reading and caching it on
// first use.
func (l *Loader) Load(agentName string) (string, error) {
	cacheKey := l.version + ":" + agentName
	if cached, ok := l.cache.Load(cacheKey); ok {
		return cached.(string), nil
	}

	path := l.path(agentName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrTemplateNotFound,
				"%s (expected at prompts/%s/%s.txt)", path, l.version, agentName)
		}
		return "", errors.Wrapf(err, "read prompt template %s", path)
	}

	content := strings.TrimSpace(string(data))
	l.cache.Store(cacheKey, content)
	return content, nil
}

// Render loads an agent's template and substitutes the caller-supplied named
// variables. Substitution is textual: each {name} placeholder is replaced by
// its value. Unknown placeholders are left as-is.
func (l *Loader) Render(agentName string, vars map[string]string) (string, error) {
	template, err := l.Load(agentName)
	if err != nil {
		return "", err
	}
	if len(vars) == 0 {
		return template, nil
	}

	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template), nil
}

// ClearCache drops every cached template.
func (l *Loader) ClearCache() {
	l.cache.Range(func(key, _ any) bool {
		l.cache.Delete(key)
		return true
	})
}

// LoadManifest reads the bundle manifest for the loader's version.
func (l *Loader) LoadManifest() (*Manifest, error) {
	path := filepath.Join(l.dir, l.version, "manifest.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt bundle manifest %s", path)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrapf(err, "unmarshal prompt bundle manifest %s", path)
	}
	return &manifest, nil
}

// Verify checks that the bundle manifest exists, matches the loader's
// version, and covers every named agent with a readable template file.
func (l *Loader) Verify(agentNames []string) error {
	manifest, err := l.LoadManifest()
	if err != nil {
		return err
	}
	if manifest.Version != l.version {
		return fmt.Errorf("prompt bundle manifest version %q does not match configured logic version %q",
			manifest.Version, l.version)
	}

	listed := make(map[string]bool, len(manifest.Agents))
	for _, name := range manifest.Agents {
		listed[name] = true
	}
	for _, name := range agentNames {
		if !listed[name] {
			return fmt.Errorf("prompt bundle %s does not list agent %q", l.version, name)
		}
		if _, err := l.Load(name); err != nil {
			return err
		}
	}
	return nil
}
