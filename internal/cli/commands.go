package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzer/config"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// settings is resolved once per invocation by the root command.
type settings struct {
	cfg     *config.Config
	manager *config.Manager
	debug   bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	st := &settings{}

	rootCmd := &cobra.Command{
		Use:   "stockanalyzer",
		Short: "StockAnalyzer - multi-agent stock analysis service",
		Long: `StockAnalyzer runs a round-robin team of LLM agents (code generator,
code executor, reporter) that analyze a stock and report back over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}

	rootCmd.AddCommand(newServeCmd(st))
	rootCmd.AddCommand(newAnalyzeCmd(st))
	rootCmd.AddCommand(newConfigCmd(st))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "JSON configuration file, watched for changes by serve")

	return rootCmd
}

func (st *settings) load(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		mgr, err := config.NewManager(config.WithConfigPath(path), config.WithInitialConfig(cfg))
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		loaded := mgr.Get()
		cfg = &loaded
		st.manager = mgr
	}
	st.debug, _ = cmd.Flags().GetBool("debug")
	st.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	st.cfg = cfg
	return nil
}

// applyFlags overlays command line overrides that must survive a reload.
func (st *settings) applyFlags(cfg *config.Config) {
	if st.debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "StockAnalyzer %s\n", Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(st *settings) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(st.cfg.Redacted(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and report missing credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := st.cfg.EnsureDirectories(); err != nil {
				return err
			}
			fmt.Fprintln(out, completedStyle.Render("configuration is valid"))
			if st.cfg.APIKey() == "" {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("no API key for provider %s: jobs will fail until one is set", st.cfg.LLMProvider)))
			}
			if !st.cfg.HasLongport() {
				fmt.Fprintln(out, pendingStyle.Render("longport not configured: market data comes from Yahoo Finance only"))
			}
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the --config file",
		Long: `Set writes one field of the JSON config file, addressed by its JSON name
(for example max_turns or model_name). A running serve watching the same
file rebuilds the agent team for new jobs. Server address, store and job
runner limits are read at startup only.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.manager == nil {
				return fmt.Errorf("config set needs --config <file>")
			}
			if err := st.manager.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], st.manager.Path())
			return nil
		},
	})

	return configCmd
}
