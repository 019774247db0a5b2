package venturegraph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/venturegraph/venturegraph"
	"github.com/venturegraph/venturegraph/pkg/config"
	"github.com/venturegraph/venturegraph/pkg/logger"
	"github.com/venturegraph/venturegraph/pkg/server"
	"github.com/venturegraph/venturegraph/pkg/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the VentureGraph HTTP server",
	Long: `Start the VentureGraph HTTP server to provide REST API access to the
knowledge graph.

The server provides endpoints for:
- Searching the graph with free-text queries
- Finding similar entities
- Exploring an entity's network
- Graph statistics and health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "", "Server host")
	serverCmd.Flags().Int("port", 0, "Server port")
	serverCmd.Flags().String("mode", "", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-uri", "", "Neo4j URI")
	serverCmd.Flags().String("db-username", "", "Neo4j username")
	serverCmd.Flags().String("db-password", "", "Neo4j password")
	serverCmd.Flags().String("db-database", "", "Neo4j database name")

	serverCmd.Flags().String("alias-file", "", "JSON/YAML alias mapping file")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry parquet files")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideServerFlags(cmd, cfg)

	if cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required (--db-uri or NEO4J_URI)")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(log.Handler(), cfg.Telemetry.ParquetPath)
		if err != nil {
			log.Warn("failed to initialize error telemetry", "error", err)
		} else {
			log = slog.New(parquetHandler)
			defer parquetHandler.Flush()
			log.Info("error telemetry enabled", "path", cfg.Telemetry.ParquetPath)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := venturegraph.New(ctx, cfg, log)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(shutdownCtx); err != nil {
			log.Warn("failed to close client cleanly", "error", err)
		}
	}()

	srv := server.New(cfg, client)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Stop(shutdownCtx)
}

// overrideServerFlags applies explicitly set command-line flags over the
// loaded configuration.
func overrideServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}
	if cmd.Flags().Changed("alias-file") {
		cfg.Aliases.File, _ = cmd.Flags().GetString("alias-file")
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
