//go:build integration

package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cperrin88/wikidumps/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "wikidumps")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}

	// Build the test binary from the project root
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cli/wikidumps")
	cmd.Dir = filepath.Clean(filepath.Join("..", ".."))

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build test binary: %s", string(output))

	return binaryPath
}

type cliTest struct {
	name           string
	config         string // written to config.yaml when set
	args           func(dir string) []string
	exitCode       int
	expectedOutput string
	expectedError  string
	check          func(t *testing.T, dir string)
}

func runCLITest(t *testing.T, binaryPath string, test cliTest) {
	t.Helper()

	t.Run(test.name, func(t *testing.T) {
		dir := t.TempDir()
		if test.config != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(test.config), 0o644))
		}

		cmd := exec.Command(binaryPath, test.args(dir)...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+dir, "HOME="+dir)

		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		done := make(chan error, 1)
		go func() {
			done <- cmd.Run()
		}()

		select {
		case err := <-done:
			code := 0
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, test.exitCode, code, "stdout: %s\nstderr: %s", stdout.String(), stderr.String())
			if test.expectedOutput != "" {
				assert.Contains(t, stdout.String(), test.expectedOutput)
			}
			if test.expectedError != "" {
				assert.Contains(t, stderr.String(), test.expectedError)
			}
			if test.check != nil {
				test.check(t, dir)
			}
		case <-time.After(30 * time.Second):
			_ = cmd.Process.Kill()
			t.Fatal("Test timed out after 30 seconds")
		}
	})
}

func configFor(baseURL, extra string) string {
	return "base_url: " + baseURL + "/\n" + extra
}

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := testutil.NewDumpServer(t)
	server.AddListing("enwiki", "20210101", "20201220")
	server.AddFile("/enwiki/20210101/enwiki-20210101-pages-articles.xml.bz2", []byte("BZh91AY&SY not really bzip2"))

	binaryPath := buildTestBinary(t)

	withConfig := func(extra ...string) func(string) []string {
		return func(dir string) []string {
			return append([]string{"--config", filepath.Join(dir, "config.yaml")}, extra...)
		}
	}
	filesSection := "files:\n  - name: pages-articles\n    type: xml.bz2\n"

	tests := []cliTest{
		{
			name:           "help",
			args:           func(string) []string { return []string{"help"} },
			expectedOutput: "wikidumps mirrors Wikimedia database dumps",
		},
		{
			name:           "version",
			args:           func(string) []string { return []string{"version"} },
			expectedOutput: "wikidumps version",
		},
		{
			name:          "unknown command",
			args:          func(string) []string { return []string{"nonexistent-command"} },
			exitCode:      2,
			expectedError: "unknown command",
		},
		{
			name:          "download without destination",
			args:          withConfig("download"),
			exitCode:      2,
			expectedError: "accepts 1 arg(s), received 0",
		},
		{
			name:     "unknown flag",
			args:     withConfig("download", "--nope", "."),
			exitCode: 2,
		},
		{
			name:          "missing destination",
			config:        configFor(server.URL, filesSection),
			args:          func(dir string) []string { return withConfig("download", filepath.Join(dir, "absent"))(dir) },
			exitCode:      8,
			expectedError: "destination directory does not exist",
		},
		{
			name:     "template error",
			config:   configFor(server.URL, "templates:\n  file_name: \"{langcode}-{bogus}\"\n"),
			args:     func(dir string) []string { return withConfig("download", dir)(dir) },
			exitCode: 4,
		},
		{
			name:     "files section error",
			config:   configFor(server.URL, "files:\n  - name: pages-articles\n"),
			args:     func(dir string) []string { return withConfig("download", dir)(dir) },
			exitCode: 5,
		},
		{
			name:     "languages section error",
			config:   configFor(server.URL, filesSection+"languages:\n  - code: en\n    enabled: false\n"),
			args:     func(dir string) []string { return withConfig("download", dir)(dir) },
			exitCode: 6,
		},
		{
			name:     "config parse error",
			config:   "languages: [en\n",
			args:     func(dir string) []string { return withConfig("download", dir)(dir) },
			exitCode: 7,
		},
		{
			name:           "download",
			config:         configFor(server.URL, filesSection+"settings:\n  retry_backoff: 1ms\n"),
			args:           func(dir string) []string { return withConfig("download", dir)(dir) },
			expectedOutput: "1 downloaded, 0 skipped",
			check: func(t *testing.T, dir string) {
				data, err := os.ReadFile(filepath.Join(dir, "en", "20210101", "enwiki-20210101-pages-articles.xml.bz2"))
				require.NoError(t, err)
				assert.Equal(t, "BZh91AY&SY not really bzip2", string(data))
			},
		},
		{
			name:           "unresolvable language does not fail the run",
			config:         configFor(server.URL, filesSection),
			args:           func(dir string) []string { return withConfig("download", dir, "--language", "xx")(dir) },
			expectedOutput: "1 languages failed",
		},
		{
			name:           "config init",
			args:           func(dir string) []string { return []string{"config", "init", filepath.Join(dir, "new.yaml")} },
			expectedOutput: "Configuration file created",
			check: func(t *testing.T, dir string) {
				assert.FileExists(t, filepath.Join(dir, "new.yaml"))
			},
		},
		{
			name:           "inspect",
			args:           func(dir string) []string { return []string{"inspect", dir} },
			expectedOutput: "PATH",
		},
	}

	for _, test := range tests {
		runCLITest(t, binaryPath, test)
	}
}
