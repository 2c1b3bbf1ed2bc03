package postgres

import (
	"database/sql"

	"github.com/offbit-ai/zeal-sub007/internal/engine"
	"github.com/offbit-ai/zeal-sub007/pkg/api"

	coree "github.com/offbit-ai/zeal-sub007/internal/engine"
	corep "github.com/offbit-ai/zeal-sub007/postgres/internal/persistence"
	coreu "github.com/offbit-ai/zeal-sub007/postgres/internal/updatelog"
)

// NewPostgresEngine returns an Engine that persists workflow snapshots
// and the pending update log in PostgreSQL. The *sql.DB must use a
// PostgreSQL driver, e.g. "github.com/jackc/pgx/v5/stdlib".
func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	return NewPostgresEngineWithSink(db, nil)
}

// NewPostgresEngineWithSink returns a PostgreSQL-backed Engine
// delivering live records to the given Sink.
func NewPostgresEngineWithSink(db *sql.DB, sink api.Sink) (api.Engine, error) {
	store, err := corep.NewPostgresGraphStore(db)
	if err != nil {
		return nil, err
	}
	log, err := coreu.NewPostgresLog(db, coree.DefaultRetention)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(coree.Config{
		Graphs:  store,
		Updates: log,
		Sink:    sink,
	}), nil
}
