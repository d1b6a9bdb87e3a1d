package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ConnString builds the connection URL
func (c PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// SearchResult is one similar swing
type SearchResult struct {
	ID           uuid.UUID `json:"id"`
	VideoName    string    `json:"videoName"`
	Club         string    `json:"club,omitempty"`
	OverallScore int       `json:"overallScore"`
	Similarity   float64   `json:"similarity"`
}

// PostgresStorage stores records in PostgreSQL with a pgvector embedding of
// the metrics for similarity search
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to PostgreSQL and verifies the connection
func NewPostgresStorage(ctx context.Context, config PostgresConfig) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Save inserts a record. Records without a precomputed embedding get one
// derived from their metrics.
func (s *PostgresStorage) Save(ctx context.Context, rec Record) error {
	embedding := rec.Embedding
	if len(embedding) != embeddings.Dimensions {
		embedding = embeddings.FromMetrics(rec.Metrics)
	}

	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	feedback, err := json.Marshal(rec.Feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}
	var sequence []byte
	if rec.Sequence != nil {
		if sequence, err = json.Marshal(rec.Sequence); err != nil {
			return fmt.Errorf("failed to encode pose sequence: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO swings
        (id, video_name, club, overall_score, metrics, feedback, sequence, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.VideoName, rec.Club, rec.Feedback.OverallScore,
		metrics, feedback, sequence,
		pgvector.NewVector(embedding), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store swing analysis: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// Find loads a record by ID
func (s *PostgresStorage) Find(ctx context.Context, id uuid.UUID) (Record, error) {
	var (
		rec                         Record
		metrics, feedback, sequence []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, video_name, club, metrics, feedback, sequence, created_at
        FROM swings WHERE id = $1`, id).
		Scan(&rec.ID, &rec.VideoName, &rec.Club, &metrics, &feedback, &sequence, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load swing %s: %w", id, err)
	}

	if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
		return Record{}, fmt.Errorf("failed to decode metrics: %w", err)
	}
	if err := json.Unmarshal(feedback, &rec.Feedback); err != nil {
		return Record{}, fmt.Errorf("failed to decode feedback: %w", err)
	}
	if len(sequence) > 0 {
		rec.Sequence = &models.PoseSequence{}
		if err := json.Unmarshal(sequence, rec.Sequence); err != nil {
			return Record{}, fmt.Errorf("failed to decode pose sequence: %w", err)
		}
	}
	return rec, nil
}

// SearchSimilar returns the swings whose metric embedding is closest to
// query by cosine distance, excluding the swing with ID exclude
func (s *PostgresStorage) SearchSimilar(ctx context.Context, query []float32, exclude uuid.UUID, limit int) ([]SearchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_name, club, overall_score,
        1 - (embedding <=> $1) AS similarity
        FROM swings
        WHERE id <> $2
        ORDER BY embedding <=> $1
        LIMIT $3`,
		pgvector.NewVector(query), exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar swings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.VideoName, &r.Club, &r.OverallScore, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, config PostgresConfig) error {
	conn, err := pgx.Connect(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS swings (
            id UUID PRIMARY KEY,
            video_name VARCHAR(255) NOT NULL,
            club VARCHAR(64) NOT NULL DEFAULT '',
            overall_score INTEGER NOT NULL,
            metrics JSONB NOT NULL,
            feedback JSONB NOT NULL,
            sequence JSONB,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        );
    `, embeddings.Dimensions))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_swings_video_name ON swings(video_name);
        CREATE INDEX IF NOT EXISTS idx_swings_embedding ON swings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
