package store

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Interaction is one logged question/answer exchange.
type Interaction struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	UserQuery   string    `json:"user_query"`
	LLMResponse string    `json:"llm_response"`
	// ResponseTime is the pipeline duration in seconds, millisecond precision.
	ResponseTime float64 `json:"response_time"`
}

// ResponseSeconds converts a pipeline duration to the stored representation.
func ResponseSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// SaveInteraction appends rec to the log and returns it with the id and
// timestamp assigned by the database.
func (s *Store) SaveInteraction(ctx context.Context, rec Interaction) (Interaction, error) {
	const q = `INSERT INTO interaction_logs (session_id, user_query, llm_response, response_time)
VALUES ($1, $2, $3, $4)
RETURNING id, timestamp`
	err := s.DB.QueryRowContext(ctx, q, rec.SessionID, rec.UserQuery, rec.LLMResponse, rec.ResponseTime).
		Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		return Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}
	return rec, nil
}

// ListInteractions returns every record of the session, oldest first.
// A session with no records yields an empty, non-nil slice.
func (s *Store) ListInteractions(ctx context.Context, sessionID string) ([]Interaction, error) {
	const q = `SELECT id, session_id, timestamp, user_query, llm_response, response_time
FROM interaction_logs
WHERE session_id = $1
ORDER BY timestamp ASC, id ASC`
	rows, err := s.DB.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	out := make([]Interaction, 0)
	for rows.Next() {
		var rec Interaction
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Timestamp, &rec.UserQuery, &rec.LLMResponse, &rec.ResponseTime); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

// DeleteInteractions removes every record of the session and reports how
// many were deleted.
func (s *Store) DeleteInteractions(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM interaction_logs WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	return n, nil
}
