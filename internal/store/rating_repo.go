package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hearthdesk/internal/model"
)

// ErrDuplicateRating is returned when a session or ticket is rated twice.
var ErrDuplicateRating = errors.New("store: already rated")

// RatingRepo provides database operations for session and ticket ratings.
type RatingRepo struct {
	db *DB
}

// NewRatingRepo creates a RatingRepo.
func NewRatingRepo(db *DB) *RatingRepo {
	return &RatingRepo{db: db}
}

// Create stores a rating. A target can be rated once; the unique
// constraint backs the client's fire-once collector.
func (r *RatingRepo) Create(rating *model.Rating) error {
	if err := rating.Validate(); err != nil {
		return err
	}

	rating.ID = uuid.New().String()
	rating.CreatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO ratings (id, target_id, kind, score, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rating.ID, rating.TargetID, rating.Kind, rating.Score, rating.Feedback, FormatTime(rating.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRating, rating.Kind, rating.TargetID)
		}
		return fmt.Errorf("store: create rating: %w", err)
	}
	return nil
}

// GetByTarget retrieves the rating for a session or ticket.
func (r *RatingRepo) GetByTarget(targetID string, kind model.RatingKind) (*model.Rating, error) {
	row := r.db.QueryRow(`
		SELECT id, target_id, kind, score, feedback, created_at
		FROM ratings WHERE target_id = ? AND kind = ?
	`, targetID, kind)

	var rating model.Rating
	var created string
	err := row.Scan(&rating.ID, &rating.TargetID, &rating.Kind, &rating.Score, &rating.Feedback, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rating for %s %s", ErrNotFound, kind, targetID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get rating: %w", err)
	}
	rating.CreatedAt = parseTime(created)
	return &rating, nil
}

// Average returns the mean score over all ratings of a kind, and how many
// there are.
func (r *RatingRepo) Average(kind model.RatingKind) (float64, int, error) {
	row := r.db.QueryRow(`
		SELECT COALESCE(AVG(score), 0), COUNT(*) FROM ratings WHERE kind = ?
	`, kind)
	var avg float64
	var count int
	if err := row.Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("store: rating average: %w", err)
	}
	return avg, count, nil
}
