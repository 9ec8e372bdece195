package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `config_version: "1"
base_url: https://mirror.example.org/wikimedia/
templates:
  language_directory: "{langcode}wiki"
  file_name: "{langcode}wiki-{date}-{filename}.{filetype}"
languages:
  - code: fr
  - code: en
  - code: de
    enabled: false
files:
  - name: pages-articles
    type: xml.bz2
  - name: abstract
    type: xml.gz
    enabled: false
  - name: stub-meta-history
    type: xml.gz
hooks:
  post_download: /etc/wikidumps/post-download.tengo
settings:
  http_timeout: 10s
  max_attempts: 3
  resume: false
  log_level: debug
`

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, 5, cfg.Settings.MaxAttempts)
	assert.Equal(t, 1, cfg.Settings.Concurrency)
	assert.True(t, cfg.Settings.ResumeEnabled())
	assert.False(t, cfg.Settings.Force)
	assert.Equal(t, []string{"en"}, cfg.EnabledLanguages())
	assert.Equal(t, []FileConfig{{Name: "pages-articles-multistream", Type: "xml.bz2"}}, cfg.EnabledFiles())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.org/wikimedia/", cfg.BaseURL)
	assert.Equal(t, []string{"en", "fr"}, cfg.EnabledLanguages())

	files := cfg.EnabledFiles()
	require.Len(t, files, 2)
	assert.Equal(t, "pages-articles", files[0].Name)
	assert.Equal(t, "stub-meta-history", files[1].Name)

	ft, ok := cfg.FiletypeFor("abstract")
	assert.True(t, ok)
	assert.Equal(t, "xml.gz", ft)
	_, ok = cfg.FiletypeFor("missing")
	assert.False(t, ok)

	assert.Equal(t, 10*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, 3, cfg.Settings.MaxAttempts)
	assert.False(t, cfg.Settings.ResumeEnabled())
	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	// Defaults for the rest
	assert.Equal(t, DefaultUserAgent, cfg.Settings.UserAgent)
	assert.Equal(t, DefaultBlockSize, cfg.Settings.BlockSize)
	assert.Equal(t, DefaultRetryBackoff, cfg.Settings.RetryBackoff)

	assert.Equal(t, map[hooks.HookType]string{
		hooks.PostDownload: "/etc/wikidumps/post-download.tengo",
		hooks.PostLanguage: "",
	}, cfg.HookPaths())

	b, err := cfg.Builder()
	require.NoError(t, err)
	u, err := b.ListingURL("en")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.org/wikimedia/enwiki/", u.String())
}

func TestLoadConfigFromReader_MinimalFile(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("settings:\n  log_level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, CurrentConfigVersion, cfg.ConfigVersion)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, []string{"en"}, cfg.EnabledLanguages())
	assert.Equal(t, "warn", cfg.Settings.LogLevel)
}

func TestLoadConfigFromReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "malformed yaml",
			content: "languages: [en\n",
			wantErr: errors.ErrConfigParse,
		},
		{
			name:    "unsupported version",
			content: "config_version: \"2\"\n",
			wantErr: errors.ErrConfigVersion,
		},
		{
			name:    "garbage version",
			content: "config_version: banana\n",
			wantErr: errors.ErrConfigParse,
		},
		{
			name:    "unknown template placeholder",
			content: "templates:\n  file_name: \"{langcode}-{nope}\"\n",
			wantErr: errors.ErrTemplate,
		},
		{
			name:    "unbalanced template",
			content: "templates:\n  language_directory: \"{langcode\"\n",
			wantErr: errors.ErrTemplate,
		},
		{
			name:    "relative base url",
			content: "base_url: dumps.example.org\n",
			wantErr: errors.ErrBaseURL,
		},
		{
			name:    "no enabled language",
			content: "languages:\n  - code: en\n    enabled: false\n",
			wantErr: errors.ErrLanguagesSection,
		},
		{
			name:    "invalid language code",
			content: "languages:\n  - code: \"../etc\"\n",
			wantErr: errors.ErrLanguagesSection,
		},
		{
			name:    "duplicate language",
			content: "languages:\n  - code: en\n  - code: en\n",
			wantErr: errors.ErrLanguagesSection,
		},
		{
			name:    "file without type",
			content: "files:\n  - name: pages-articles\n",
			wantErr: errors.ErrFilesSection,
		},
		{
			name:    "no enabled file",
			content: "files:\n  - name: abstract\n    type: xml.gz\n    enabled: false\n",
			wantErr: errors.ErrFilesSection,
		},
		{
			name:    "file with path separator",
			content: "files:\n  - name: ../abstract\n    type: xml.gz\n",
			wantErr: errors.ErrFilesSection,
		},
		{
			name:    "dot-dot file name",
			content: "files:\n  - name: \"..\"\n    type: xml.gz\n",
			wantErr: errors.ErrFilesSection,
		},
		{
			name:    "dot file type",
			content: "files:\n  - name: abstract\n    type: \".\"\n",
			wantErr: errors.ErrFilesSection,
		},
		{
			name:    "invalid log format",
			content: "settings:\n  log_format: xml\n",
			wantErr: errors.ErrInvalidSetting,
		},
		{
			name:    "invalid log level",
			content: "settings:\n  log_level: loud\n",
			wantErr: errors.ErrInvalidLogLevel,
		},
		{
			name:    "negative attempts",
			content: "settings:\n  max_attempts: -1\n",
			wantErr: errors.ErrInvalidSetting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, cfg.EnabledLanguages())
}

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, []string{"en"}, cfg.EnabledLanguages())
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, errors.ErrEmptyConfigPath)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WIKIDUMPS_BASE_URL", "https://env.example.org/")
	t.Setenv("WIKIDUMPS_HTTP_TIMEOUT", "5s")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org/", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Settings.HTTPTimeout)
}

func TestLoadConfigFile_IgnoresEnv(t *testing.T) {
	t.Setenv("WIKIDUMPS_BASE_URL", "https://env.example.org/")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), fsutil.FileModeDefault))

	cfg, err := LoadConfigFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.org/wikimedia/", cfg.BaseURL)

	cfg, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WIKIDUMPS_USER_AGENT":  "mirror-bot/2.0",
		"WIKIDUMPS_LOG_LEVEL":   "error",
		"WIKIDUMPS_CONCURRENCY": "4",
		"WIKIDUMPS_LOG_FILE":    "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "mirror-bot/2.0", cfg.Settings.UserAgent)
	assert.Equal(t, "error", cfg.Settings.LogLevel)
	assert.Equal(t, 4, cfg.Settings.Concurrency)
	assert.Empty(t, cfg.Settings.LogFile)

	env["WIKIDUMPS_HTTP_TIMEOUT"] = "soon"
	err := cfg.ApplyEnv(lookup)
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WIKIDUMPS_TEST_DOTENV=from-file\n"), fsutil.FileModeDefault))
	t.Setenv("WIKIDUMPS_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("WIKIDUMPS_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("WIKIDUMPS_TEST_DOTENV"))
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.LogLevel = "debug"
	cfg.Languages = append(cfg.Languages, LanguageConfig{Code: "de", Enabled: boolPtr(false)})

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveConfig(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http_timeout: 30s")
	_, err = os.Stat(configPath + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadConfigFromReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveConfig_EmptyPath(t *testing.T) {
	assert.ErrorIs(t, DefaultConfig().SaveConfig(""), errors.ErrEmptyConfigPath)
}

func TestToYAML(t *testing.T) {
	data, err := DefaultConfig().ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://dumps.wikimedia.org/")
	assert.Contains(t, string(data), "{langcode}wiki-{date}-{filename}.{filetype}")

	back, err := LoadConfigFromReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), back)
}

func TestSetAndGetValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{key: "base_url", value: "https://x.example.org/", want: "https://x.example.org/"},
		{key: "http_timeout", value: "1m", want: "1m0s"},
		{key: "retry_backoff", value: "250ms", want: "250ms"},
		{key: "max_attempts", value: "7", want: "7"},
		{key: "block_size", value: "4096", want: "4096"},
		{key: "concurrency", value: "2", want: "2"},
		{key: "resume", value: "false", want: "false"},
		{key: "force", value: "true", want: "true"},
		{key: "log_level", value: "warn", want: "warn"},
		{key: "log_format", value: "json", want: "json"},
		{key: "http_timeout", value: "forever", wantErr: true},
		{key: "max_attempts", value: "many", wantErr: true},
		{key: "force", value: "maybe", wantErr: true},
		{key: "unknown", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.SetValue(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, err := cfg.GetValue(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMap(t *testing.T) {
	m := DefaultConfig().ToMap()
	assert.Equal(t, "30s", m["http_timeout"])
	assert.Equal(t, "true", m["resume"])
	assert.Equal(t, "info", m["log_level"])
	assert.Equal(t, "text", m["log_format"])
	assert.Equal(t, "", m["log_file"])
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	p, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, filepath.Join("wikidumps", "config.yaml")), p)
}
