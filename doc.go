// Package venturegraph is a retrieval layer over a property graph of
// startups, people and repositories.
//
// VentureGraph answers free-text questions about a startup ecosystem by
// combining vector similarity search, structured filter search and graph
// traversal over Neo4j, then assembling the hits into scored matches, a
// visualization graph and a short natural-language summary.
//
// # Basic Usage
//
// Create a client from configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := venturegraph.New(ctx, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Searching
//
// Search classifies the query, extracts filters, and routes it to the
// cheapest strategy that can answer it:
//
//	resp, err := client.Search(ctx, "fintech startups in new york", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, match := range resp.Matches {
//		fmt.Printf("%s (%.2f)\n", match.Name(), match.Score)
//	}
//	fmt.Println(resp.Response)
//
// Callers can override the configured defaults per query:
//
//	opts := &venturegraph.SearchOptions{
//		TopK:       10,
//		GraphDepth: 3,
//		FilterType: "Company",
//	}
//	resp, err = client.Search(ctx, "payments infrastructure", opts)
//
// # Node Types
//
// The graph holds three kinds of entities:
//
//   - Company: a startup, keyed by name and source
//   - Person: a founder or investor, linked to companies
//   - Repository: an open-source repository, possibly owned by a company
//
// # Edge Types
//
// Relationships between nodes:
//
//   - FOUNDED / INVESTS_IN: person to company
//   - OWNS / LIKELY_OWNS: company to repository, with a confidence score
//   - IN_BATCH / IN_INDUSTRY / IN_LOCATION: entity to hub node
//   - SIMILAR_TO: precomputed same-label embedding similarity
//
// # Ingestion
//
// The pipeline package loads company and repository dumps, embeds them,
// upserts nodes and edges, and can resume an interrupted run from a
// checkpoint:
//
//	p := pipeline.New(client.Store(), client.Embedder(), checkpoints, logger)
//	report, err := p.Run(ctx, pipeline.Options{
//		CompaniesFile:    "companies.json",
//		RepositoriesFile: "repos.json",
//	})
//
// # Architecture
//
//   - pkg/analyzer: query classification, filter extraction, planning
//   - pkg/retriever: routing and hybrid vector+graph retrieval
//   - pkg/assembler: dedup, visualization graph, grounded summary
//   - pkg/store: Neo4j persistence and Cypher search
//   - pkg/pipeline: batch ingestion with checkpoint resume
//   - pkg/server: Gin HTTP surface over the client
package venturegraph
