// Package store executes graph and vector queries against Neo4j. It is the
// only package that speaks Cypher; everything above it works with typed
// matches and filters.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/venturegraph/venturegraph/pkg/types"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("node not found")

// Store wraps a Neo4j driver. Every call opens its own short-lived session
// and closes it unconditionally; no lock is held across I/O.
type Store struct {
	client   neo4j.DriverWithContext
	database string
	retries  int
	backoff  time.Duration
	logger   *slog.Logger
}

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// MaxRetries bounds retry attempts for transient failures; Backoff is
	// the fixed delay between attempts.
	MaxRetries int
	Backoff    time.Duration
}

// New connects to Neo4j. Connectivity is verified eagerly so a dead store
// surfaces at startup, not on the first query.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	s := &Store{
		client:   client,
		database: cfg.Database,
		retries:  cfg.MaxRetries,
		backoff:  cfg.Backoff,
		logger:   logger,
	}

	if err := s.withRetry(ctx, "verify connectivity", func(ctx context.Context) error {
		return client.VerifyConnectivity(ctx)
	}); err != nil {
		return nil, err
	}

	logger.Info("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)
	return s, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// withRetry runs fn with bounded attempts and a fixed backoff. Exhausted
// retries propagate the last error; retrying further up the stack is not
// this layer's job.
func (s *Store) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying store operation",
				"op", op, "attempt", attempt+1, "error", lastErr)
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled during retry backoff: %w", op, ctx.Err())
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, s.retries, lastErr)
}

// readRecords runs a read query in its own session and collects all rows.
func (s *Store) readRecords(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	var records []*db.Record
	err := s.withRetry(ctx, "read query", func(ctx context.Context) error {
		session := s.session(ctx)
		defer session.Close(ctx)

		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return res.Collect(ctx)
		})
		if err != nil {
			return err
		}
		records = result.([]*db.Record)
		return nil
	})
	return records, err
}

// write runs a write query in its own session.
func (s *Store) write(ctx context.Context, query string, params map[string]any) error {
	return s.withRetry(ctx, "write query", func(ctx context.Context) error {
		session := s.session(ctx)
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, params)
			return nil, err
		})
		return err
	})
}

// nodeToMatch converts a database node into a Match, dropping the stored
// embedding from the returned properties.
func nodeToMatch(node dbtype.Node, score float64) types.Match {
	props := make(map[string]any, len(node.Props))
	for k, v := range node.Props {
		if k == "embedding" {
			continue
		}
		props[k] = v
	}

	id, _ := props["id"].(string)
	nodeType := types.UnknownNodeType
	if len(node.Labels) > 0 {
		nodeType = types.NodeType(node.Labels[0])
	}

	return types.Match{
		ID:    id,
		Score: score,
		Type:  nodeType,
		Data:  props,
	}
}

func recordNode(record *db.Record, key string) (dbtype.Node, bool) {
	value, found := record.Get(key)
	if !found {
		return dbtype.Node{}, false
	}
	node, ok := value.(dbtype.Node)
	return node, ok
}

func recordFloat(record *db.Record, key string) float64 {
	value, found := record.Get(key)
	if !found {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func recordInt(record *db.Record, key string) int {
	value, found := record.Get(key)
	if !found {
		return 0
	}
	if v, ok := value.(int64); ok {
		return int(v)
	}
	return 0
}

func recordStrings(record *db.Record, key string) []string {
	value, found := record.Get(key)
	if !found {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
