package cli

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mobile-next/doubletap/commands"
	"github.com/mobile-next/doubletap/config"
	"github.com/mobile-next/doubletap/sessions"
	"github.com/mobile-next/doubletap/utils"
	"github.com/spf13/cobra"
)

const version = "dev"

var (
	settings     = config.Default()
	shutdownHook = utils.NewShutdownHook()
	hookMu       sync.Mutex
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "doubletap",
	Short: "Classify taps into single and double taps",
	Long:  `A tap classifier that tells single taps from double taps by the time between them, usable from the command line, a terminal tap pad or a JSON-RPC server.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// SetShutdownHook replaces the hook that owns process-wide cleanup.
func SetShutdownHook(hook *utils.ShutdownHook) {
	hookMu.Lock()
	defer hookMu.Unlock()
	shutdownHook = hook
}

func getShutdownHook() *utils.ShutdownHook {
	hookMu.Lock()
	defer hookMu.Unlock()
	return shutdownHook
}

// initConfig layers the config file and then the command line flags over
// the built-in defaults, and installs the session registry.
func initConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	settings = cfg

	utils.SetVerbose(verbose || cfg.Log.Verbose)
	utils.Verbose("Loaded settings from %s", path)

	commands.SetDefaults(sessionOptions(cfg))

	registry, err := sessions.NewRegistry(cfg.Server.MaxSessions)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	commands.SetRegistry(registry)
	getShutdownHook().Register("sessions", func() error {
		registry.CloseAll()
		return nil
	})
	return nil
}

// applyFlags overrides config values with the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.Classifier.ThresholdMs = thresholdMs
	}
	if flags.Changed("single-tap") {
		cfg.Classifier.SingleTap = singleTap
	}
	if flags.Changed("no-suppress") {
		cfg.Classifier.SuppressDefault = !noSuppress
	}
	if flags.Changed("max-sessions") {
		cfg.Server.MaxSessions = maxSessions
	}
	return cfg.Validate()
}

func sessionOptions(cfg config.Config) sessions.Options {
	opts := sessions.DefaultOptions()
	opts.Threshold = cfg.Threshold()
	opts.SingleTap = cfg.Classifier.SingleTap
	opts.SuppressDefault = cfg.Classifier.SuppressDefault
	return opts
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", fmt.Sprintf("config file, .ini or .toml (default %s)", config.DefaultPath()))
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// printJson writes data as indented JSON to the command output
func printJson(data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		utils.Error("failed to encode output: %v", err)
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(rootCmd.OutOrStdout(), string(jsonData))
	return err
}
