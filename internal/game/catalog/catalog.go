// Package catalog loads game-type definitions from YAML content files and
// indexes them by id.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownGameType is returned when a lookup misses.
var ErrUnknownGameType = errors.New("unknown game type")

// GameType describes one playable game: its player bounds and phase budgets.
type GameType struct {
	ID           string
	Name         string
	MinPlayers   int
	MaxPlayers   int
	NightBudget  time.Duration
	VotingBudget time.Duration
}

// yamlGameFile is the top-level YAML structure for game definition files.
type yamlGameFile struct {
	Game yamlGame `yaml:"game"`
}

// yamlGame is the YAML representation of a game type.
type yamlGame struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	MinPlayers    int    `yaml:"min_players"`
	MaxPlayers    int    `yaml:"max_players"`
	NightSeconds  int    `yaml:"night_seconds"`
	VotingSeconds int    `yaml:"voting_seconds"`
}

// LoadFromFile reads and validates a single game-type YAML file.
//
// Precondition: path must point to a valid YAML game definition.
// Postcondition: Returns a validated GameType or a non-nil error.
func LoadFromFile(path string) (GameType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GameType{}, fmt.Errorf("reading game file %s: %w", path, err)
	}

	var file yamlGameFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return GameType{}, fmt.Errorf("parsing game file %s: %w", path, err)
	}

	gt := GameType{
		ID:           file.Game.ID,
		Name:         file.Game.Name,
		MinPlayers:   file.Game.MinPlayers,
		MaxPlayers:   file.Game.MaxPlayers,
		NightBudget:  time.Duration(file.Game.NightSeconds) * time.Second,
		VotingBudget: time.Duration(file.Game.VotingSeconds) * time.Second,
	}
	if err := gt.validate(); err != nil {
		return GameType{}, fmt.Errorf("game file %s: %w", path, err)
	}
	return gt, nil
}

func (g GameType) validate() error {
	var errs []string
	if g.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if g.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if g.MinPlayers < 2 {
		errs = append(errs, fmt.Sprintf("min_players must be >= 2, got %d", g.MinPlayers))
	}
	if g.MaxPlayers < g.MinPlayers {
		errs = append(errs, fmt.Sprintf("max_players must be >= min_players, got %d", g.MaxPlayers))
	}
	if g.NightBudget < 0 {
		errs = append(errs, "night_seconds must be >= 0")
	}
	if g.VotingBudget < 0 {
		errs = append(errs, "voting_seconds must be >= 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Registry indexes loaded game types by id. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]GameType
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]GameType)}
}

// Add registers a game type, replacing any previous definition with the
// same id.
//
// Precondition: gt must have passed validation.
func (r *Registry) Add(gt GameType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[gt.ID] = gt
}

// Get returns the game type for id.
//
// Postcondition: Returns ErrUnknownGameType if id is not registered.
func (r *Registry) Get(id string) (GameType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gt, ok := r.types[id]
	if !ok {
		return GameType{}, fmt.Errorf("%w: %q", ErrUnknownGameType, id)
	}
	return gt, nil
}

// IDs returns the ids of all registered game types.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for id := range r.types {
		out = append(out, id)
	}
	return out
}

// LoadDir loads every .yaml file in dir into a new Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Registry with at least one game type, or an error.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading games dir %s: %w", dir, err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		gt, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		reg.Add(gt)
	}
	if len(reg.IDs()) == 0 {
		return nil, fmt.Errorf("no game definitions found in %s", dir)
	}
	return reg, nil
}
