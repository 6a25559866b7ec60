package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/flashbots/pctmatch/protocol"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresSink stores reports in the match_runs table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects, pings and migrates.
func NewPostgresSink(config *PostgresConfig) (*PostgresSink, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}

	sink := &PostgresSink{db: db}
	if err := sink.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}
	return sink, nil
}

func (s *PostgresSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_runs (
		id BIGSERIAL PRIMARY KEY,
		run_at TIMESTAMP WITH TIME ZONE NOT NULL,
		mode VARCHAR(16) NOT NULL,
		boundary VARCHAR(16) NOT NULL,
		query_file TEXT NOT NULL,
		dataset_file TEXT NOT NULL,
		chunk_size INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		clients INTEGER NOT NULL,
		positive_ids BIGINT[] NOT NULL,
		phases JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_match_runs_run_at ON match_runs(run_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Write inserts one row per report.
func (s *PostgresSink) Write(ctx context.Context, r *Report) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	phases, err := json.Marshal(r.Phases)
	if err != nil {
		return errors.Wrap(err, "encoding phases")
	}
	ids, err := positiveIDArray(r.PositiveIDs)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO match_runs
		(run_at, mode, boundary, query_file, dataset_file, chunk_size, chunks, clients, positive_ids, phases)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.RunAt,
		string(r.Mode),
		r.Boundary,
		r.QueryFile,
		r.DatasetFile,
		r.ChunkSize,
		r.Chunks,
		r.Clients,
		pq.Array(ids),
		phases,
	)
	if err != nil {
		return errors.Wrap(err, "inserting match run")
	}
	return nil
}

// positiveIDArray converts ids for the BIGINT[] column. Ids above
// math.MaxInt64 do not fit and are rejected.
func positiveIDArray(ids []protocol.QueryID) ([]int64, error) {
	out := make([]int64, len(ids))
	for i, id := range ids {
		if id > math.MaxInt64 {
			return nil, errors.Mark(errors.Newf("query id %d does not fit in a BIGINT column", id), protocol.ErrPrecondition)
		}
		out[i] = int64(id)
	}
	return out, nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
