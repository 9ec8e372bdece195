// Package config provides configuration management for wikidumps.
// It handles loading, validating and saving the YAML configuration file:
// the dump server, the URL templates, the enabled languages and files, hook
// scripts and general settings. Values from the environment (and a .env
// file) override the file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cperrin88/wikidumps/pkg/dumpurl"
	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	ConfigVersion string           `yaml:"config_version"`
	BaseURL       string           `yaml:"base_url"`
	Templates     Templates        `yaml:"templates"`
	Languages     []LanguageConfig `yaml:"languages"`
	Files         []FileConfig     `yaml:"files"`
	Hooks         HooksConfig      `yaml:"hooks,omitempty"`

	// General settings
	Settings Settings `yaml:"settings"`
}

// Templates hold the placeholders used to build dump URLs.
type Templates struct {
	LanguageDirectory string `yaml:"language_directory"`
	FileName          string `yaml:"file_name"`
}

// LanguageConfig is one language edition. Enabled defaults to true.
type LanguageConfig struct {
	Code    string `yaml:"code"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// FileConfig is one dump file per language. Enabled defaults to true.
type FileConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// HooksConfig holds the paths of the hook scripts.
type HooksConfig struct {
	PostDownload string `yaml:"post_download,omitempty"`
	PostLanguage string `yaml:"post_language,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// Network settings
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	BlockSize    int           `yaml:"block_size"`

	// Download behavior
	Resume      *bool `yaml:"resume,omitempty"`
	Force       bool  `yaml:"force"`
	Concurrency int   `yaml:"concurrency"`

	// Output settings
	LogLevel  string `yaml:"log_level"` // error, warn, info, debug
	LogFormat string `yaml:"log_format"` // text, json
	LogFile   string `yaml:"log_file,omitempty"`
}

// Default configuration values.
const (
	// CurrentConfigVersion is written by SaveConfig.
	CurrentConfigVersion = "1"

	// SupportedConfigVersions is the constraint config_version must satisfy.
	SupportedConfigVersions = ">= 1, < 2"

	DefaultBaseURL           = "https://dumps.wikimedia.org/"
	DefaultLanguageDirectory = "{langcode}wiki"
	DefaultFileName          = "{langcode}wiki-{date}-{filename}.{filetype}"

	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	DefaultUserAgent    = "wikidumps/1.0"
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = time.Second
	DefaultBlockSize    = 1 << 20
	DefaultConcurrency  = 1

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var languageCode = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ConfigVersion: CurrentConfigVersion,
		BaseURL:       DefaultBaseURL,
		Templates: Templates{
			LanguageDirectory: DefaultLanguageDirectory,
			FileName:          DefaultFileName,
		},
		Languages: []LanguageConfig{{Code: "en"}},
		Files:     []FileConfig{{Name: "pages-articles-multistream", Type: "xml.bz2"}},
		Settings: Settings{
			HTTPTimeout:  DefaultHTTPTimeout,
			UserAgent:    DefaultUserAgent,
			MaxAttempts:  DefaultMaxAttempts,
			RetryBackoff: DefaultRetryBackoff,
			BlockSize:    DefaultBlockSize,
			Resume:       boolPtr(true),
			Concurrency:  DefaultConcurrency,
			LogLevel:     "info",
			LogFormat:    "text",
		},
	}
}

func boolPtr(b bool) *bool { return &b }

// LoadConfig loads configuration from a file. A missing file yields the
// defaults. Environment overrides are applied before validation.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads configuration from a file without environment
// overrides. Use it when the result is saved back to path.
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	// Ensure the path is clean and absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return decode(file)
}

// LoadConfigFromReader loads configuration from an io.Reader without
// consulting the environment.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg, err := decode(reader)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	config.applyDefaults()

	if err := checkVersion(config.ConfigVersion); err != nil {
		return nil, err
	}
	return &config, nil
}

func checkVersion(raw string) error {
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", errors.ErrConfigVersion, raw, err)
	}
	constraints, err := version.NewConstraint(SupportedConfigVersions)
	if err != nil {
		return err
	}
	if !constraints.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", errors.ErrConfigVersion, raw, SupportedConfigVersions)
	}
	return nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	// Validate the config file path
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	// Ensure the path is clean and absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	// Write YAML data
	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	// Atomically replace the config file
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid. The returned error matches
// the sentinel of the section at fault: ErrTemplate, ErrFilesSection,
// ErrLanguagesSection or ErrConfigValidation.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := checkVersion(c.ConfigVersion); err != nil {
		return err
	}
	if _, err := c.Builder(); err != nil {
		return err
	}
	if err := validateLanguages(c.Languages); err != nil {
		return err
	}
	if err := validateFiles(c.Files); err != nil {
		return err
	}
	if err := validateSettings(c.Settings); err != nil {
		return err
	}
	return nil
}

func validateLanguages(langs []LanguageConfig) error {
	seen := make(map[string]bool)
	enabled := 0
	for i, lang := range langs {
		if lang.Code == "" {
			return errors.ErrLanguagesSectionWithDetails("entry %d: code cannot be empty", i)
		}
		if !languageCode.MatchString(lang.Code) {
			return errors.ErrLanguagesSectionWithDetails("invalid language code %q", lang.Code)
		}
		if seen[lang.Code] {
			return errors.ErrLanguagesSectionWithDetails("duplicate language %q", lang.Code)
		}
		seen[lang.Code] = true
		if lang.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.ErrLanguagesSectionWithDetails("no language is enabled")
	}
	return nil
}

func isDotSegment(s string) bool { return s == "." || s == ".." }

func validateFiles(files []FileConfig) error {
	seen := make(map[string]bool)
	enabled := 0
	for i, f := range files {
		if f.Name == "" {
			return errors.ErrFilesSectionWithDetails("entry %d: name cannot be empty", i)
		}
		if f.Type == "" {
			return errors.ErrFilesSectionWithDetails("file %q has no type", f.Name)
		}
		if strings.ContainsAny(f.Name+f.Type, `/\`) {
			return errors.ErrFilesSectionWithDetails("file %q: name and type cannot contain path separators", f.Name)
		}
		if isDotSegment(f.Name) || isDotSegment(f.Type) {
			return errors.ErrFilesSectionWithDetails("file %q: name and type cannot be . or ..", f.Name)
		}
		if seen[f.Name] {
			return errors.ErrFilesSectionWithDetails("duplicate file %q", f.Name)
		}
		seen[f.Name] = true
		if f.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.ErrFilesSectionWithDetails("no file is enabled")
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.ErrInvalidSettingWithDetails("http_timeout", "cannot be negative")
	}
	if s.RetryBackoff < 0 {
		return errors.ErrInvalidSettingWithDetails("retry_backoff", "cannot be negative")
	}
	if s.MaxAttempts < 1 {
		return errors.ErrInvalidSettingWithDetails("max_attempts", "must be at least 1")
	}
	if s.BlockSize < 1 {
		return errors.ErrInvalidSettingWithDetails("block_size", "must be at least 1")
	}
	if s.Concurrency < 1 {
		return errors.ErrInvalidSettingWithDetails("concurrency", "must be at least 1")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return errors.ErrInvalidSettingWithDetails("log_format", "must be text or json")
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "wikidumps", "config.yaml"), nil
}

// IsEnabled reports whether the language is enabled.
func (l LanguageConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// IsEnabled reports whether the file is enabled.
func (f FileConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// ResumeEnabled reports whether partial files are resumed.
func (s Settings) ResumeEnabled() bool {
	return s.Resume == nil || *s.Resume
}

// EnabledLanguages returns the enabled language codes, sorted and deduplicated.
func (c *Config) EnabledLanguages() []string {
	var out []string
	for _, lang := range c.Languages {
		if lang.IsEnabled() {
			out = append(out, lang.Code)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// EnabledFiles returns the enabled files in configured order.
func (c *Config) EnabledFiles() []FileConfig {
	var out []FileConfig
	for _, f := range c.Files {
		if f.IsEnabled() {
			out = append(out, f)
		}
	}
	return out
}

// FiletypeFor returns the filetype configured for a filename key.
func (c *Config) FiletypeFor(name string) (string, bool) {
	for _, f := range c.Files {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// Builder returns the URL builder for the configured server and templates.
func (c *Config) Builder() (*dumpurl.Builder, error) {
	return dumpurl.NewBuilder(c.BaseURL,
		dumpurl.Template(c.Templates.LanguageDirectory),
		dumpurl.Template(c.Templates.FileName))
}

// HookPaths maps each hook type to its configured script path.
func (c *Config) HookPaths() map[hooks.HookType]string {
	return map[hooks.HookType]string{
		hooks.PostDownload: c.Hooks.PostDownload,
		hooks.PostLanguage: c.Hooks.PostLanguage,
	}
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.ConfigVersion == "" {
		c.ConfigVersion = defaults.ConfigVersion
	}
	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.Templates.LanguageDirectory == "" {
		c.Templates.LanguageDirectory = defaults.Templates.LanguageDirectory
	}
	if c.Templates.FileName == "" {
		c.Templates.FileName = defaults.Templates.FileName
	}
	// Absent sections get the defaults; present but empty ones fail validation.
	if c.Languages == nil {
		c.Languages = defaults.Languages
	}
	if c.Files == nil {
		c.Files = defaults.Files
	}

	// Apply default settings if not set
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.MaxAttempts == 0 {
		c.Settings.MaxAttempts = defaults.Settings.MaxAttempts
	}
	if c.Settings.RetryBackoff == 0 {
		c.Settings.RetryBackoff = defaults.Settings.RetryBackoff
	}
	if c.Settings.BlockSize == 0 {
		c.Settings.BlockSize = defaults.Settings.BlockSize
	}
	if c.Settings.Resume == nil {
		c.Settings.Resume = defaults.Settings.Resume
	}
	if c.Settings.Concurrency == 0 {
		c.Settings.Concurrency = defaults.Settings.Concurrency
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = defaults.Settings.LogFormat
	}
}
