package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// DatabaseHandler serves the database block family against a tenant
// database gateway. A database_connect block is a passive connection
// descriptor; the query blocks reference it by id and resolve the DSN at
// execution time, so a single descriptor can be shared by many queries.
type DatabaseHandler struct {
	db  flow.TenantDB
	log *slog.Logger
}

// NewDatabaseHandler creates the database block family handler.
func NewDatabaseHandler(db flow.TenantDB, log *slog.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		db:  db,
		log: log.With(sl.Module("flow.handlers.database")),
	}
}

func (h *DatabaseHandler) Types() []entity.BlockType {
	return []entity.BlockType{
		entity.BlockDatabaseConnect,
		entity.BlockDatabaseQuery,
		entity.BlockDatabaseFetch,
		entity.BlockDatabaseInsert,
		entity.BlockDatabaseUpdate,
		entity.BlockDatabaseDelete,
	}
}

func (h *DatabaseHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	if req.Block.Type == entity.BlockDatabaseConnect {
		// Descriptor only. Validated at load time; nothing to do here.
		return flow.Result{}, nil
	}

	if h.db == nil {
		return flow.Result{}, fmt.Errorf("tenant database gateway not configured")
	}

	c, err := entity.DecodeContent[entity.DatabaseContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	dsn, err := h.resolveDSN(req, c.ConnectBlockID)
	if err != nil {
		return flow.Result{}, err
	}

	query := flow.Render(c.Query, req.Scope)

	if req.Block.Type == entity.BlockDatabaseFetch {
		rows, err := h.db.Fetch(ctx, dsn, query)
		if err != nil {
			return flow.Result{}, fmt.Errorf("fetch: %w", err)
		}

		name := c.ResultVar
		if name == "" {
			name = "db_result"
		}
		// A single row binds directly so templates can reach its columns
		// without indexing.
		if len(rows) == 1 {
			req.Scope.Set(name, rows[0])
		} else {
			req.Scope.Set(name, rows)
		}
		h.log.Debug("rows fetched",
			slog.Int64("block_id", req.Block.ID),
			slog.Int("rows", len(rows)),
		)
		return flow.Result{}, nil
	}

	if err := h.db.Execute(ctx, dsn, query); err != nil {
		return flow.Result{}, fmt.Errorf("%s: %w", req.Block.Type, err)
	}
	return flow.Result{}, nil
}

// resolveDSN looks up the referenced database_connect block in the current
// graph and builds the connection string from its content.
func (h *DatabaseHandler) resolveDSN(req *flow.Request, connectID int64) (string, error) {
	desc, err := req.Graph.Block(connectID)
	if err != nil {
		return "", fmt.Errorf("connect block %d: %w", connectID, err)
	}
	if desc.Type != entity.BlockDatabaseConnect {
		return "", fmt.Errorf("block %d is %s, not a connection descriptor", connectID, desc.Type)
	}

	c, err := entity.DecodeContent[entity.DatabaseConnectContent](desc)
	if err != nil {
		return "", err
	}

	if c.DSN != "" {
		return flow.Render(c.DSN, req.Scope), nil
	}
	return composeDSN(c.Params, req.Scope), nil
}

func composeDSN(params map[string]string, scope *flow.Scope) string {
	p := func(key string) string { return flow.Render(params[key], scope) }

	host := p("host")
	if port := p("port"); port != "" {
		host += ":" + port
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   "/" + p("database"),
	}
	if user := p("user"); user != "" {
		u.User = url.UserPassword(user, p("password"))
	}
	return u.String()
}
