package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultRating is the rating a new profile starts with.
const DefaultRating = 1000

// Profile is a registered player.
type Profile struct {
	ID        int64
	Username  string
	Email     string
	Nickname  string
	Rating    int
	CreatedAt time.Time
}

// ErrProfileNotFound is returned when a profile lookup yields no results.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileExists is returned when attempting to create a duplicate username.
var ErrProfileExists = errors.New("profile already exists")

// ProfileRepository provides profile persistence operations.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a ProfileRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, username, email, nickname, rating, created_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.Nickname, &p.Rating, &p.CreatedAt)
	return p, err
}

// Create inserts a new profile.
//
// Precondition: username must be non-empty; rating <= 0 selects DefaultRating.
// Postcondition: Returns the created Profile with ID and CreatedAt set,
// or ErrProfileExists if the username is taken.
func (r *ProfileRepository) Create(ctx context.Context, username, email, nickname string, rating int) (Profile, error) {
	if username == "" {
		return Profile{}, errors.New("username must not be empty")
	}
	if rating <= 0 {
		rating = DefaultRating
	}
	p, err := scanProfile(r.db.QueryRow(ctx,
		`INSERT INTO profiles (username, email, nickname, rating)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+profileColumns,
		username, email, nickname, rating,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return Profile{}, ErrProfileExists
		}
		return Profile{}, fmt.Errorf("inserting profile: %w", err)
	}
	return p, nil
}

// GetByUsername retrieves a profile by username.
//
// Precondition: username must be non-empty.
// Postcondition: Returns the Profile or ErrProfileNotFound.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = $1`,
		username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// Rating returns the rating stored for username.
//
// Postcondition: Returns ErrProfileNotFound when no profile exists.
func (r *ProfileRepository) Rating(ctx context.Context, username string) (int, error) {
	p, err := r.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return p.Rating, nil
}

// SetRating updates the rating for the given profile.
//
// Postcondition: The rating is updated, or ErrProfileNotFound is returned.
func (r *ProfileRepository) SetRating(ctx context.Context, id int64, rating int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET rating = $1 WHERE id = $2`,
		rating, id,
	)
	if err != nil {
		return fmt.Errorf("updating rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation.
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
