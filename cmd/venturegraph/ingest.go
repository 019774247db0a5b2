package venturegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/venturegraph/venturegraph"
	"github.com/venturegraph/venturegraph/pkg/config"
	"github.com/venturegraph/venturegraph/pkg/logger"
	"github.com/venturegraph/venturegraph/pkg/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest companies and repositories into the graph",
	Long: `Ingest JSON data files into the knowledge graph: company and founder
nodes with embeddings, repository nodes, ownership and founding edges,
batch/industry hubs and the similarity graph.

Runs are checkpointed: re-running with the same --run-id resumes where the
previous attempt stopped instead of re-embedding everything.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("companies", "", "JSON file with company records")
	ingestCmd.Flags().String("repositories", "", "JSON file with repository records")
	ingestCmd.Flags().String("run-id", "", "Run identifier for checkpoint resume")
	ingestCmd.Flags().String("checkpoint-dir", "", "Directory for run checkpoints")
	ingestCmd.Flags().Int("concurrency", 4, "Parallel embed+upsert workers")
	ingestCmd.Flags().Bool("skip-similarity", false, "Skip the similarity graph rebuild")

	ingestCmd.Flags().String("db-uri", "", "Neo4j URI")
	ingestCmd.Flags().String("db-username", "", "Neo4j username")
	ingestCmd.Flags().String("db-password", "", "Neo4j password")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	companiesFile, _ := cmd.Flags().GetString("companies")
	reposFile, _ := cmd.Flags().GetString("repositories")
	if companiesFile == "" && reposFile == "" {
		return fmt.Errorf("at least one of --companies or --repositories is required")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := venturegraph.New(ctx, cfg, log)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			log.Warn("failed to close client cleanly", "error", err)
		}
	}()

	checkpointDir, _ := cmd.Flags().GetString("checkpoint-dir")
	checkpoints, err := pipeline.NewCheckpointManager(checkpointDir)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	skipSimilarity, _ := cmd.Flags().GetBool("skip-similarity")

	p := pipeline.New(client.Store(), client.Embedder(), checkpoints, log)
	report, err := p.Run(context.Background(), pipeline.Options{
		CompaniesFile:    companiesFile,
		RepositoriesFile: reposFile,
		Concurrency:      concurrency,
		RunID:            runID,
		SkipSimilarity:   skipSimilarity,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %d companies, %d people, %d repositories, %d edges (%d skipped) in %s\n",
		report.Companies, report.People, report.Repositories,
		report.Edges, report.Skipped, report.Duration.Round(time.Millisecond))
	return nil
}
