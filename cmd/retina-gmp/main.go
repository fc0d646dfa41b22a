package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/justkk/Diabetic-retinopathy/internal/config"
	"github.com/justkk/Diabetic-retinopathy/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// configKeyAnnotation marks a flag as the command-line form of a config key.
const configKeyAnnotation = "retina-gmp/config-key"

var (
	optConfigPath string
	optLogLevel   string
)

var (
	v      = viper.New()
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "retina-gmp",
	Short: "Generalized motion patterns for retinal images",
	Long: `retina-gmp rotates a retinal image about a pivot, combines the rotated
copies into a generalized motion pattern, and aggregates patterns over random
pivots into interference and variance maps.

Run without a subcommand it serves the tools over MCP (JSON-RPC on stdin and
stdout). Configuration is layered: built-in defaults, the YAML file given by
--config, RETINA_GMP_* environment variables (e.g. RETINA_GMP_GMP_COALESCE=MIN,
RETINA_GMP_AGGREGATE_NUM_PIVOTS=50), then command-line flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		logger.Info("starting MCP server", "version", Version)
		srv := server.New(cfg, logger)
		return srv.Run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("retina-gmp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

func init() {
	server.Version = Version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&optConfigPath, "config", "", "YAML configuration file")
	pf.StringVar(&optLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	keyFlag(pf, "config", "config")
	keyFlag(pf, "log-level", "log.level")

	rootCmd.AddCommand(versionCmd)
}

// keyFlag binds the named flag to a configuration key when its command runs.
func keyFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// setup layers the configuration for the running command and installs the
// default logger. Only the running command's flags are bound, so commands
// may reuse a flag name for different keys.
func setup(cmd *cobra.Command, args []string) error {
	v.SetEnvPrefix("RETINA_GMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return bindErr
	}

	var err error
	if cfg, err = config.Load(v); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return setDefaultSlog(cfg.Log.Level)
}

// setDefaultSlog logs text to stderr; stdout carries the MCP protocol.
func setDefaultSlog(level string) error {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
