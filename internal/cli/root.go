package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/OFFIS-RIT/graphrag/internal/app"
	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	envFile   string
	storeName string
	debug     bool

	currentConfig config.Config
	currentApp    *app.App

	// newApp is replaced in tests.
	newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
		return app.New(ctx, cfg)
	}
)

var rootCmd = &cobra.Command{
	Use:           "graphrag",
	Short:         "graphrag segments documents, indexes them in Neo4j and answers questions over vectors and the entity graph",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			util.LoadEnv(envFile)
		} else {
			util.LoadEnv()
		}

		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug:  debug || util.GetEnvBool("DEBUG", false),
			Format: util.GetEnvString("LOG_FORMAT", "text"),
			Writer: cmd.ErrOrStderr(),
		}))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if storeName != "" {
			cfg.Store = storeName
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		currentConfig = cfg
		currentApp = nil
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if currentApp != nil {
			currentApp.Close(context.Background())
			currentApp = nil
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "graph store: neo4j or memory (overrides GRAPH_STORE)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadApp connects to the configured backends on first use.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	if currentApp != nil {
		return currentApp, nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, currentConfig)
	if err != nil {
		return nil, err
	}
	currentApp = a
	return a, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
