// Package config loads and validates the settings of a sync run.
//
// Values come from a TOML file, then environment variables (optionally
// seeded from .env files), then command-line flags, each layer overriding
// the previous one.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/Azure/AppConfiguration-Sync/internal/configfile"
	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/Azure/AppConfiguration-Sync/internal/logging"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "confsync.toml"

// Store types.
const (
	StoreCloudFront = "cloudfront"
	StoreSQLite     = "sqlite"
)

// Separators accepted between flattened key segments.
var Separators = []string{".", ",", ";", "-", "_", "__", "/", ":"}

// Config mirrors confsync.toml.
type Config struct {
	Root        string `toml:"root"`
	Files       string `toml:"files"`
	Format      string `toml:"format"`
	Separator   string `toml:"separator"`
	Depth       int    `toml:"depth"`
	Strict      bool   `toml:"strict"`
	Prefix      string `toml:"prefix"`
	Label       string `toml:"label"`
	Tags        string `toml:"tags"` // JSON object of string values
	ContentType string `toml:"content-type"`

	Store StoreConfig    `toml:"store"`
	Log   logging.Config `toml:"log"`
}

// StoreConfig selects and addresses the remote store.
type StoreConfig struct {
	Type    string `toml:"type"`
	KVSName string `toml:"kvs-name"`
	KVSARN  string `toml:"kvs-arn"`
	Region  string `toml:"region"`
	Path    string `toml:"path"`
}

// ValidationError is an invalid or missing setting. Nothing has been
// contacted when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{
		Root:  ".",
		Store: StoreConfig{Type: StoreCloudFront},
		Log:   logging.DefaultConfig(),
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// envOverrides maps environment variables onto store settings.
var envOverrides = map[string]func(*Config, string){
	"CONFSYNC_STORE_TYPE": func(c *Config, v string) { c.Store.Type = v },
	"CONFSYNC_KVS_NAME":   func(c *Config, v string) { c.Store.KVSName = v },
	"CONFSYNC_KVS_ARN":    func(c *Config, v string) { c.Store.KVSARN = v },
	"CONFSYNC_STORE_PATH": func(c *Config, v string) { c.Store.Path = v },
	"CONFSYNC_LABEL":      func(c *Config, v string) { c.Label = v },
	"CONFSYNC_PREFIX":     func(c *Config, v string) { c.Prefix = v },
}

// ApplyEnv overrides settings from the environment, read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for name, set := range envOverrides {
		if v := getenv(name); v != "" {
			set(c, v)
		}
	}
}

// Run is a validated Config, ready to drive one sync.
type Run struct {
	Files  configfile.Options
	Build  kvs.BuildOptions
	Strict bool
	Store  StoreConfig
}

// Resolve validates the config and converts it into a Run.
func (c *Config) Resolve() (*Run, error) {
	if c.Files == "" {
		return nil, invalid("files is required (set in config file or via --files)")
	}

	format, err := configfile.ParseFormat(c.Format)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if !slices.Contains(Separators, c.Separator) {
		quoted := make([]string, len(Separators))
		for i, s := range Separators {
			quoted[i] = "'" + s + "'"
		}
		return nil, invalid("Separator '%s' is invalid. Allowed values are: %s", c.Separator, strings.Join(quoted, ", "))
	}

	if c.Depth < 0 {
		return nil, invalid("Depth '%d' is invalid. Depth should be a positive number.", c.Depth)
	}

	tags, err := ParseTags(c.Tags)
	if err != nil {
		return nil, err
	}

	if err := c.Store.Validate(); err != nil {
		return nil, err
	}

	return &Run{
		Files: configfile.Options{
			Root:      c.Root,
			Pattern:   c.Files,
			Format:    format,
			Separator: c.Separator,
			Depth:     c.Depth,
		},
		Build: kvs.BuildOptions{
			Label:       kvs.LabelOf(c.Label),
			Prefix:      c.Prefix,
			Tags:        tags,
			ContentType: c.ContentType,
		},
		Strict: c.Strict,
		Store:  c.Store,
	}, nil
}

// Validate checks the store type and its connection settings.
func (s StoreConfig) Validate() error {
	switch s.Type {
	case StoreCloudFront:
		if s.KVSName == "" && s.KVSARN == "" {
			return invalid("kvs-name or kvs-arn is required (set in config file or via --kvs-name / --kvs-arn)")
		}
	case StoreSQLite:
		if s.Path == "" {
			return invalid("store path is required (set in config file or via --store-path)")
		}
	default:
		return invalid("Store type '%s' is invalid. Allowed values are: %s, %s", s.Type, StoreCloudFront, StoreSQLite)
	}
	return nil
}

// ParseDepth parses a depth given as text. Empty means no limit (0).
func ParseDepth(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	depth, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || depth < 1 {
		return 0, invalid("Depth '%s' is invalid. Depth should be a positive number.", s)
	}
	return depth, nil
}

// ParseTags decodes a JSON object whose values must all be strings. Empty
// input means no tags.
func ParseTags(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, invalid("Tags are invalid. Tags should only contain string properties: %s", s)
	}

	tags := make(map[string]string, len(raw))
	for k, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, invalid("Tags are invalid. Tags should only contain string properties: %s", s)
		}
		tags[k] = str
	}
	return tags, nil
}
