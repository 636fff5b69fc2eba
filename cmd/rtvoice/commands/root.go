package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamvox/realtime-go/pkg/cli"
	"github.com/streamvox/realtime-go/pkg/realtime"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rtvoice",
	Short: "Realtime voice API CLI tool",
	Long: `rtvoice - A command line interface for realtime voice sessions.

This tool connects to the Realtime API over WebSocket and lets you:
  - Chat interactively with text in and text out
  - Stream the raw server event feed for debugging
  - Mint ephemeral session tokens for browser clients

Configuration is stored in ~/.rtvoice/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a new context
  rtvoice config add-context myctx --api-key YOUR_API_KEY

  # Start an interactive chat
  rtvoice -c myctx session chat --voice echo

  # Dump the event stream as JSON lines
  rtvoice -c myctx session events --json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.rtvoice/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug frame logging)")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sessionCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'rtvoice config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// newClient builds a realtime client from the resolved context.
func newClient() (*realtime.Client, *cli.Context, error) {
	ctx, err := getContext()
	if err != nil {
		return nil, nil, err
	}
	if ctx.APIKey == "" {
		return nil, nil, fmt.Errorf("context %q has no api_key", ctx.Name)
	}

	var opts []realtime.Option
	if ctx.BaseURL != "" {
		opts = append(opts, realtime.WithHTTPURL(ctx.BaseURL))
	}
	if ctx.WebSocketURL != "" {
		opts = append(opts, realtime.WithWebSocketURL(ctx.WebSocketURL))
	}
	if ctx.Organization != "" {
		opts = append(opts, realtime.WithOrganization(ctx.Organization))
	}
	if ctx.Project != "" {
		opts = append(opts, realtime.WithProject(ctx.Project))
	}

	return realtime.NewClient(ctx.APIKey, opts...), ctx, nil
}

// outputResult outputs the result using cli package
func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, format, outputPath)
}
