package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/dynamicdata"
	"github.com/iwvelando/pv-scenario/pkg/formula"
	"github.com/iwvelando/pv-scenario/pkg/mathutil"
	"github.com/iwvelando/pv-scenario/pkg/projection"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"github.com/iwvelando/pv-scenario/pkg/storage"
	"go.uber.org/zap"
)

var (
	// ErrScenarioNotFound is returned for unknown scenario IDs.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrCalculationInProgress is returned when a scenario is already being calculated.
	ErrCalculationInProgress = errors.New("calculation already in progress")
	// ErrInvalidValue is returned for non-finite parameter values or empty keys.
	ErrInvalidValue = errors.New("invalid parameter value")
)

// Registrar receives every computed value after a successful run.
type Registrar interface {
	RegisterValue(key string, value any, meta dynamicdata.Metadata)
}

// ProgressFunc is called with the completed fraction (0 < p <= 1) after each
// rule of a run.
type ProgressFunc func(progress float64)

// Option customizes a Store.
type Option func(*Store)

// WithRegistry publishes calculation results to r.
func WithRegistry(r Registrar) Option {
	return func(s *Store) { s.registry = r }
}

// WithRules replaces the built-in rule table.
func WithRules(rs []rules.CalculationRule) Option {
	return func(s *Store) { s.rules = rules.Clone(rs) }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the function that allocates scenario IDs.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithDefaults overrides individual default parameters of new scenarios.
func WithDefaults(overrides map[string]float64) Option {
	return func(s *Store) {
		for k, v := range overrides {
			s.defaults[k] = v
		}
	}
}

// Store owns the scenario list. Every mutation goes through its methods and
// is persisted before it becomes visible. The rule table is fixed at
// construction and read without the lock.
type Store struct {
	logger    *zap.Logger
	storage   storage.Storage
	registry  Registrar
	rules     []rules.CalculationRule
	evaluator *formula.Evaluator
	projector *projection.Projector
	now       func() time.Time
	newID     func() string
	defaults  map[string]float64

	mu        sync.Mutex
	scenarios []Scenario
	activeID  string
	running   map[string]context.CancelFunc
}

// NewStore validates the rule table, loads the persisted scenarios and
// returns the store.
func NewStore(logger *zap.Logger, st storage.Storage, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if st == nil {
		return nil, errors.New("storage is required")
	}

	s := &Store{
		logger:    logger,
		storage:   st,
		rules:     rules.Default(),
		evaluator: formula.NewEvaluator(logger),
		projector: projection.NewProjector(logger),
		now:       time.Now,
		newID:     newScenarioID,
		defaults:  DefaultParameters(),
		running:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := rules.Validate(s.rules); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func newScenarioID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) load() error {
	data, err := s.storage.Get(constants.ScenarioStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}

	var scenarios []Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return fmt.Errorf("failed to decode scenarios: %w", err)
	}
	s.scenarios = scenarios

	s.logger.Info("scenarios loaded",
		zap.String("op", "scenario.load"),
		zap.Int("scenarios", len(scenarios)),
	)
	return nil
}

// commitLocked persists next and, if that succeeds, makes it the current list.
func (s *Store) commitLocked(next []Scenario, op string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}
	if err := s.storage.Set(constants.ScenarioStorageKey, data); err != nil {
		s.logger.Error("failed to persist scenarios",
			zap.String("op", op),
			zap.Error(err),
		)
		return fmt.Errorf("failed to persist scenarios: %w", err)
	}
	s.scenarios = next
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.scenarios {
		if s.scenarios[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) cloneListLocked() []Scenario {
	out := make([]Scenario, len(s.scenarios))
	for i, sc := range s.scenarios {
		out[i] = sc.Clone()
	}
	return out
}

// Rules returns a copy of the rule table the store calculates with.
func (s *Store) Rules() []rules.CalculationRule {
	return rules.Clone(s.rules)
}

// Scenarios returns copies of all scenarios in creation order.
func (s *Store) Scenarios() []Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneListLocked()
}

// Scenario returns a copy of the scenario with the given ID.
func (s *Store) Scenario(id string) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	return s.scenarios[idx].Clone(), nil
}

// Active returns the active scenario, if any.
func (s *Store) Active() (Scenario, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return Scenario{}, false
	}
	return s.scenarios[idx].Clone(), true
}

// SetActive selects the scenario with the given ID.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	s.activeID = id
	return nil
}

// CreateScenario adds a scenario with the default parameters and makes it
// active. An empty name is replaced by a numbered one.
func (s *Store) CreateScenario(name string) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Scenario %d", len(s.scenarios)+1)
	}
	sc := Scenario{
		ID:         s.newID(),
		Name:       name,
		Enabled:    true,
		Parameters: cloneValues(s.defaults),
		CreatedAt:  s.now(),
	}

	next := append(s.cloneListLocked(), sc)
	if err := s.commitLocked(next, "scenario.CreateScenario"); err != nil {
		return Scenario{}, err
	}
	s.activeID = sc.ID

	s.logger.Info("scenario created",
		zap.String("op", "scenario.CreateScenario"),
		zap.String("scenario", sc.ID),
		zap.String("name", sc.Name),
	)
	return sc.Clone(), nil
}

// DuplicateScenario copies the parameters and labels of id into a new,
// uncalculated scenario and makes it active.
func (s *Store) DuplicateScenario(id string) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	src := s.scenarios[idx]
	sc := Scenario{
		ID:          s.newID(),
		Name:        src.Name + " (copy)",
		Description: src.Description,
		Enabled:     src.Enabled,
		Parameters:  cloneValues(src.Parameters),
		CreatedAt:   s.now(),
	}

	next := append(s.cloneListLocked(), sc)
	if err := s.commitLocked(next, "scenario.DuplicateScenario"); err != nil {
		return Scenario{}, err
	}
	s.activeID = sc.ID
	return sc.Clone(), nil
}

// update applies fn to a copy of the scenario and commits the result.
func (s *Store) update(id, op string, fn func(*Scenario) error) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	next := s.cloneListLocked()
	if err := fn(&next[idx]); err != nil {
		return Scenario{}, err
	}
	if err := s.commitLocked(next, op); err != nil {
		return Scenario{}, err
	}
	return next[idx].Clone(), nil
}

// UpdateParameter sets one parameter. Results are not recalculated.
func (s *Store) UpdateParameter(id, key string, value float64) (Scenario, error) {
	if strings.TrimSpace(key) == "" {
		return Scenario{}, fmt.Errorf("%w: empty parameter key", ErrInvalidValue)
	}
	if !mathutil.IsFinite(value) {
		return Scenario{}, fmt.Errorf("%w: %s = %v", ErrInvalidValue, key, value)
	}
	return s.update(id, "scenario.UpdateParameter", func(sc *Scenario) error {
		if sc.Parameters == nil {
			sc.Parameters = make(map[string]float64)
		}
		sc.Parameters[key] = value
		return nil
	})
}

// UpdateDetails changes the name and description of a scenario.
func (s *Store) UpdateDetails(id, name, description string) (Scenario, error) {
	return s.update(id, "scenario.UpdateDetails", func(sc *Scenario) error {
		if strings.TrimSpace(name) != "" {
			sc.Name = name
		}
		sc.Description = description
		return nil
	})
}

// SetEnabled sets the enabled flag of a scenario.
func (s *Store) SetEnabled(id string, enabled bool) (Scenario, error) {
	return s.update(id, "scenario.SetEnabled", func(sc *Scenario) error {
		sc.Enabled = enabled
		return nil
	})
}

// DeleteScenario removes a scenario, clearing the active selection if it was
// active. A calculation in flight for it is cancelled.
func (s *Store) DeleteScenario(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}

	current := s.cloneListLocked()
	next := append(current[:idx:idx], current[idx+1:]...)
	if err := s.commitLocked(next, "scenario.DeleteScenario"); err != nil {
		return err
	}
	if s.activeID == id {
		s.activeID = ""
	}
	if cancel, ok := s.running[id]; ok {
		cancel()
	}

	s.logger.Info("scenario deleted",
		zap.String("op", "scenario.DeleteScenario"),
		zap.String("scenario", id),
	)
	return nil
}
