package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Result is one row of a question's aggregate. Choice questions fill
// Option and Count; free-text questions fill ID, Text and the flags.
type Result struct {
	Option   string `json:"option,omitempty"`
	Count    int64  `json:"count,omitempty"`
	ID       int64  `json:"id,omitempty"`
	Text     string `json:"text,omitempty"`
	IsPicked bool   `json:"is_picked,omitempty"`
	IsHidden bool   `json:"is_hidden,omitempty"`
}

// Fetcher loads the current aggregate of a question.
type Fetcher interface {
	QuestionResults(ctx context.Context, questionID int64) ([]Result, error)
}

// PostgresFetcher reads aggregates through the get_question_results
// stored procedure.
type PostgresFetcher struct {
	pool *pgxpool.Pool
}

// NewPostgresFetcher creates a fetcher with a connection pool.
func NewPostgresFetcher(ctx context.Context, databaseURL string) (*PostgresFetcher, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresFetcher{pool: pool}, nil
}

// Close closes the database connection pool.
func (f *PostgresFetcher) Close() {
	f.pool.Close()
}

// QuestionResults returns the aggregate rows of a question. Each row is
// read as JSON so both result shapes decode into Result.
func (f *PostgresFetcher) QuestionResults(ctx context.Context, questionID int64) ([]Result, error) {
	rows, err := f.pool.Query(ctx, `
		SELECT row_to_json(r)::text
		FROM get_question_results($1) AS r
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query results of question %d: %w", questionID, err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read results of question %d: %w", questionID, err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		var r Result
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("decode result of question %d: %w", questionID, err)
		}
		results = append(results, r)
	}

	return results, nil
}
