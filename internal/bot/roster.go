// Package bot provides simulated players that queue, play random legal moves
// and re-queue, driven by a YAML roster.
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Entry defines one simulated player.
type Entry struct {
	Name string `yaml:"name"`
	// Profile, if set, names the stored profile whose rating overrides Rating.
	Profile string `yaml:"profile"`
	Rating  int    `yaml:"rating"`
	Kind    string `yaml:"kind"`
	// Games is how many games the bot plays before leaving; 0 means no limit.
	Games int `yaml:"games"`
	// ThinkTime is a duration string (e.g. "250ms") waited before each move.
	ThinkTime string `yaml:"think_time"`
}

// Think returns the parsed think time.
//
// Precondition: e has passed Validate.
func (e Entry) Think() time.Duration {
	if e.ThinkTime == "" {
		return 0
	}
	d, _ := time.ParseDuration(e.ThinkTime)
	return d
}

// Validate checks that the entry satisfies basic invariants.
//
// Postcondition: Returns nil iff Name and Kind are non-empty, Rating and Games
// are non-negative and ThinkTime, if set, is a valid duration.
func (e Entry) Validate() error {
	if e.Name == "" {
		return errors.New("bot: name must not be empty")
	}
	if e.Kind == "" {
		return fmt.Errorf("bot %q: kind must not be empty", e.Name)
	}
	if e.Rating < 0 {
		return fmt.Errorf("bot %q: rating must be >= 0", e.Name)
	}
	if e.Games < 0 {
		return fmt.Errorf("bot %q: games must be >= 0", e.Name)
	}
	if e.ThinkTime != "" {
		if _, err := time.ParseDuration(e.ThinkTime); err != nil {
			return fmt.Errorf("bot %q: think_time %q is not a valid duration: %w", e.Name, e.ThinkTime, err)
		}
	}
	return nil
}

// Roster is a set of simulated players.
type Roster struct {
	Bots []Entry `yaml:"bots"`
}

// LoadRosterFromBytes parses and validates a roster.
//
// Postcondition: Returns a validated *Roster, or an error naming the first
// invalid entry.
func LoadRosterFromBytes(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster YAML: %w", err)
	}
	seen := make(map[string]bool, len(r.Bots))
	for _, e := range r.Bots {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("bot %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
	}
	return &r, nil
}

// LoadRoster reads a roster file.
//
// Precondition: path must be a readable YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %q: %w", path, err)
	}
	r, err := LoadRosterFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	return r, nil
}

// RatingSource looks up a stored rating by profile name.
type RatingSource interface {
	Rating(ctx context.Context, username string) (int, error)
}

// ResolveRatings replaces the rating of every entry with a Profile by the
// stored one. A failed lookup keeps the roster rating and is logged.
func (r *Roster) ResolveRatings(ctx context.Context, src RatingSource, logger *zap.Logger) {
	for i := range r.Bots {
		e := &r.Bots[i]
		if e.Profile == "" {
			continue
		}
		rating, err := src.Rating(ctx, e.Profile)
		if err != nil {
			logger.Warn("keeping roster rating",
				zap.String("bot", e.Name),
				zap.String("profile", e.Profile),
				zap.Int("rating", e.Rating),
				zap.Error(err),
			)
			continue
		}
		e.Rating = rating
	}
}
