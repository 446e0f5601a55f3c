// Package tenantdb runs the database block family's statements against
// per-bot external PostgreSQL databases.
package tenantdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"botflow/internal/lib/sl"
)

const queryTimeout = 10 * time.Second

// Gateway executes statements against tenant databases addressed by DSN.
// Pools are created lazily per DSN and cached for the process lifetime, so
// repeated blocks of the same bot reuse connections.
type Gateway struct {
	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
	log   *slog.Logger
}

// NewGateway creates the tenant database gateway.
func NewGateway(log *slog.Logger) *Gateway {
	return &Gateway{
		pools: make(map[string]*pgxpool.Pool),
		log:   log.With(sl.Module("tenantdb")),
	}
}

func (g *Gateway) pool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.pools[dsn]; ok {
		return p, nil
	}

	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	g.pools[dsn] = p
	g.log.Debug("tenant pool created")
	return p, nil
}

// Execute runs a statement that returns no rows.
func (g *Gateway) Execute(ctx context.Context, dsn, query string) error {
	p, err := g.pool(ctx, dsn)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := p.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	g.log.Debug("statement executed", slog.Int64("rows", tag.RowsAffected()))
	return nil
}

// Fetch runs a query and returns its rows as column-name maps.
func (g *Gateway) Fetch(ctx context.Context, dsn, query string) ([]map[string]any, error) {
	p, err := g.pool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return out, nil
}

// Close releases every cached pool. Called on shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for dsn, p := range g.pools {
		p.Close()
		delete(g.pools, dsn)
	}
}
