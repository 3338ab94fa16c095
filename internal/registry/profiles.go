// ABOUTME: Agent profile definitions loaded from per-agent TOML files.
// ABOUTME: A profile names the runtime endpoint and run options for one agent type.

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultRequestTimeout bounds a single runtime turn when the profile does
// not set one.
const DefaultRequestTimeout = 5 * time.Minute

// Profile describes one agent type: where its runtime lives and how runs
// should be shaped. Profiles are read once at startup and are immutable
// afterwards.
type Profile struct {
	Type        string         `toml:"type"`
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Endpoint    string         `toml:"endpoint"`
	Model       string         `toml:"model"`
	Options     map[string]any `toml:"options"`

	RequestTimeoutRaw string        `toml:"request_timeout"`
	RequestTimeout    time.Duration `toml:"-"`
}

// Validate checks required fields and parses duration strings.
func (p *Profile) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("profile type is required")
	}
	if p.Endpoint == "" {
		return fmt.Errorf("profile %s: endpoint is required", p.Type)
	}
	if p.Name == "" {
		p.Name = p.Type
	}
	if p.RequestTimeoutRaw != "" {
		d, err := time.ParseDuration(p.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("profile %s: invalid request_timeout: %w", p.Type, err)
		}
		p.RequestTimeout = d
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}
	return nil
}

// OptionsJSON renders the profile's run options for the runtime wire request.
// Returns nil when no options are set.
func (p Profile) OptionsJSON() json.RawMessage {
	if len(p.Options) == 0 {
		return nil
	}
	data, err := json.Marshal(p.Options)
	if err != nil {
		return nil
	}
	return data
}

// LoadProfiles reads every *.toml file in dir into the catalog. A file that
// fails to parse or validate is logged and skipped; the rest still load. A
// missing directory loads nothing and is not an error.
func (r *Registry) LoadProfiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		r.logger.Info("no agent profile directory", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading profile directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		p, err := loadProfileFile(path)
		if err != nil {
			r.logger.Warn("skipping agent profile", "path", path, "error", err)
			continue
		}

		r.mu.Lock()
		r.profiles[p.Type] = p
		r.mu.Unlock()
		loaded++

		r.logger.Info("agent profile loaded",
			"agent_type", p.Type,
			"name", p.Name,
			"endpoint", p.Endpoint,
		)
	}

	r.logger.Info("agent catalog ready", "profiles", loaded, "dir", dir)
	return nil
}

func loadProfileFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var p Profile
	if _, err := toml.Decode(expanded, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
