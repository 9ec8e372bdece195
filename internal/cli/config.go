package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/cperrin88/wikidumps/internal/logger"
	"github.com/cperrin88/wikidumps/pkg/config"
	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and modify wikidumps configuration settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration, including environment overrides",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration key to a specific value",
		Args:  usageArgs(cobra.ExactArgs(setCommandArgs)),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Long:  "Get the value of a specific configuration key",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, withHooks bool

	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Initialize configuration file",
		Long: `Create a default configuration file at PATH, or at --config or the
default location when PATH is omitted. With --with-hooks, template hook
scripts are written next to it and referenced from the configuration.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigInit(path, force, withHooks)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")
	cmd.Flags().BoolVar(&withHooks, "with-hooks", false, "Also write template hook scripts")

	return cmd
}

func runConfigShow(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "Server: %s\n", cfg.BaseURL)
	_, _ = fmt.Fprintf(w, "Language directory: %s\n", cfg.Templates.LanguageDirectory)
	_, _ = fmt.Fprintf(w, "File name: %s\n\n", cfg.Templates.FileName)

	tabWriter := tabwriter.NewWriter(w, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "SETTING\tVALUE")
	_, _ = fmt.Fprintln(tabWriter, "-------\t-----")

	// Display settings using ToMap for consistency with actual config keys
	settingsMap := cfg.ToMap()
	keys := make([]string, 0, len(settingsMap))
	for key := range settingsMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\n", key, settingsMap[key])
	}
	_ = tabWriter.Flush()

	_, _ = fmt.Fprintf(w, "\nLanguages (%d):\n", len(cfg.Languages))
	for _, lang := range cfg.Languages {
		_, _ = fmt.Fprintf(w, "  %s (%s)\n", lang.Code, enabledLabel(lang.IsEnabled()))
	}

	_, _ = fmt.Fprintf(w, "\nFiles (%d):\n", len(cfg.Files))
	for _, f := range cfg.Files {
		_, _ = fmt.Fprintf(w, "  %s: %s (%s)\n", f.Name, f.Type, enabledLabel(f.IsEnabled()))
	}

	paths := cfg.HookPaths()
	if paths[hooks.PostDownload] != "" || paths[hooks.PostLanguage] != "" {
		_, _ = fmt.Fprintln(w, "\nHooks:")
		for _, t := range []hooks.HookType{hooks.PostDownload, hooks.PostLanguage} {
			if paths[t] != "" {
				_, _ = fmt.Fprintf(w, "  %s: %s\n", t, paths[t])
			}
		}
	}

	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func runConfigSet(key, value string) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	// Environment overrides stay overrides: they are not written back.
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.SetValue(key, value); err != nil {
		return &UsageError{Err: fmt.Errorf("failed to set configuration value: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Success("Configuration updated", logger.Fields{"key": key, "value": value})
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	value, err := cfg.GetValue(key)
	if err != nil {
		return &UsageError{Err: fmt.Errorf("failed to get configuration value: %w", err)}
	}

	_, _ = fmt.Fprintln(w, value)
	return nil
}

func runConfigInit(path string, force, withHooks bool) error {
	configPath := path
	if configPath == "" {
		var err error
		if configPath, err = getConfigPath(); err != nil {
			return err
		}
	}

	// Check if config file already exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite): %w", configPath, errors.ErrConfigFileExists)
	}

	defaultConfig := config.DefaultConfig()
	if withHooks {
		dir := filepath.Join(filepath.Dir(configPath), "hooks")
		if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
			return fmt.Errorf("failed to create hook directory: %w", err)
		}
		for _, t := range []hooks.HookType{hooks.PostDownload, hooks.PostLanguage} {
			scriptPath := filepath.Join(dir, string(t)+".tengo")
			if err := os.WriteFile(scriptPath, []byte(hooks.HookTemplate(t)+"\n"), fsutil.FileModeDefault); err != nil {
				return fmt.Errorf("failed to write hook template: %w", err)
			}
		}
		defaultConfig.Hooks.PostDownload = filepath.Join(dir, string(hooks.PostDownload)+".tengo")
		defaultConfig.Hooks.PostLanguage = filepath.Join(dir, string(hooks.PostLanguage)+".tengo")
	}

	if err := defaultConfig.SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save default configuration: %w", err)
	}

	logger.Success("Configuration file created", logger.Fields{"path": configPath})
	return nil
}
