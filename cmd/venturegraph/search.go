package venturegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/venturegraph/venturegraph"
	"github.com/venturegraph/venturegraph/pkg/config"
	"github.com/venturegraph/venturegraph/pkg/logger"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one query against the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("top-k", 0, "Number of results")
	searchCmd.Flags().Int("depth", 0, "Graph expansion depth")
	searchCmd.Flags().String("filter-type", "", "Restrict to Company, Person or Repository")
	searchCmd.Flags().Bool("json", false, "Print the full response as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	topK, _ := cmd.Flags().GetInt("top-k")
	depth, _ := cmd.Flags().GetInt("depth")
	filterType, _ := cmd.Flags().GetString("filter-type")
	asJSON, _ := cmd.Flags().GetBool("json")

	query := strings.Join(args, " ")
	response, err := client.Search(context.Background(), query, &venturegraph.SearchOptions{
		TopK:       topK,
		GraphDepth: depth,
		FilterType: filterType,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}

	fmt.Printf("%s\n\n", response.Response)
	for i, m := range response.Matches {
		fmt.Printf("%d. %s [%s] score=%.3f", i+1, m.Name(), m.Type, m.Score)
		if m.Connection != nil {
			fmt.Printf(" (via %s, %d hops)",
				strings.Join(m.Connection.Path, " -> "), m.Connection.Distance)
		}
		fmt.Println()
	}
	return nil
}
