package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stg-network/chat-relay/internal/application"
	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/logger"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var (
	cfgFile string         // Path to custom config file (optional)
	cfg     *config.Config // Global reference to loaded configuration
)

// rootCmd defines the main CLI command for the chat relay
var rootCmd = &cobra.Command{
	Use:   "chat-relay",
	Short: "chat-relay is a real-time WebSocket relay for chat events",
	Long:  `Real-time relay bridging backend event-bus messages and ephemeral client signals to WebSocket chat clients.`,
	Example: `
  chat-relay start --redis-host localhost --redis-port 6379
  chat-relay start --log-level debug --metrics-port 9090
  chat-relay start --config /path/to/config.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version command
		if cmd.Name() == "version" {
			return nil
		}

		// Load configuration (use nil logger to avoid sync issues)
		var err error
		cfg, err = config.Load(cfgFile, nil)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}

		// Override config with command line flags if specified
		flags := cmd.Flags()
		if flags.Changed("relay-name") {
			cfg.Relay.Name, _ = flags.GetString("relay-name")
		}
		if flags.Changed("redis-host") {
			cfg.Redis.Host, _ = flags.GetString("redis-host")
		}
		if flags.Changed("redis-port") {
			cfg.Redis.Port, _ = flags.GetInt("redis-port")
		}
		if flags.Changed("metrics-port") {
			portStr, _ := flags.GetString("metrics-port")
			cfg.Metrics.Port, _ = strconv.Atoi(portStr)
		}

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: show help when no subcommand is provided
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying help: %v\n", err)
		}
	},
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init is automatically called before main(), sets up flags and subcommands
func init() {
	// Add persistent flags (inherited by all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to custom config file (optional)")

	// CLI flags for relay configuration
	rootCmd.PersistentFlags().String("relay-name", "", "Name of the relay")
	rootCmd.PersistentFlags().String("redis-host", "localhost", "Redis event-bus host")
	rootCmd.PersistentFlags().IntP("redis-port", "", 6379, "Redis event-bus port")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-file", "", "Path to the log file")
	rootCmd.PersistentFlags().String("log-format", "console", "Log output format (console or json)")
	rootCmd.PersistentFlags().String("metrics-port", "8181", "Port for Prometheus metrics server")

	// A simple version subcommand
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of chat-relay",
		Long:  "Print the version number of chat-relay along with build information",
		Run: func(cmd *cobra.Command, args []string) {
			// Check if detailed flag is provided
			if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
				fmt.Println(GetFullVersionInfo())
			} else {
				fmt.Println(GetVersionWithPrefix())
			}
		},
	})

	// Add detailed flag to version command
	versionCmd := rootCmd.Commands()[len(rootCmd.Commands())-1]
	versionCmd.Flags().BoolP("detailed", "d", false, "Show detailed version information")

	// Add start subcommand
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the chat relay server",
		Long:  "Start the chat relay server with the specified configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfgFile, _ = cmd.Flags().GetString("config")
			if cfgFile != "" {
				absPath, err := filepath.Abs(cfgFile)
				if err != nil {
					logger.Error("Failed to resolve absolute path for config", zap.Error(err))
					os.Exit(1)
				}
				cfgFile = absPath
			}
			logger.Info("Using config file", zap.String("config_file", cfgFile))

			// Use the context passed down from main.go
			ctx := cmd.Context()

			// Initialize the application/relay
			logger.Info("Starting relay...")
			app, err := application.New(ctx, cfg)
			if err != nil {
				logger.Error("Failed to initialize the relay", zap.Error(err))
				os.Exit(1)
			}

			// Set up graceful shutdown handling
			go func() {
				<-ctx.Done() // Wait for cancellation signal
				logger.Info("Shutdown signal received, initiating graceful shutdown...")
				app.Shutdown()
			}()

			// Start the relay
			if err := app.Start(ctx); err != nil {
				logger.Error("Failed to start the relay", zap.Error(err))
				os.Exit(1)
			}

			logger.Info("Chat relay started successfully!")
		},
	}

	rootCmd.AddCommand(startCmd)
}
