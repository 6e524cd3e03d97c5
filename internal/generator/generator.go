// Package generator synthesizes plausible shopping histories. Each user is
// driven by a small state machine over the running history: additions are
// forced while fewer than three items are available, after which purchase,
// addition and removal are drawn by configured probability.
package generator

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"go.uber.org/zap"

	"github.com/jward/shobo/internal/history"
	"github.com/jward/shobo/internal/logging"
	"github.com/jward/shobo/internal/store"
)

// ErrNoAvailableItems is returned when a purchase or removal is attempted
// with no available item. The scheduling rule makes this unreachable, so
// seeing it indicates a bug.
var ErrNoAvailableItems = errors.New("no available items")

// minAvailable is the availability threshold below which an addition is forced.
const minAvailable = 3

// maxIDAttempts bounds salt redraws on operation id collision.
const maxIDAttempts = 16

// Config controls generation.
type Config struct {
	Count               int     // number of users
	PurchaseProbability float64 // chance of a purchase step
	AddProbability      float64 // chance of an addition step; removal takes the rest
	MinOps              int     // inclusive lower bound of operations per user
	MaxOps              int     // inclusive upper bound of operations per user
	Seed                uint64  // 0 means a random seed
}

// DefaultConfig returns the stock generation settings.
func DefaultConfig() Config {
	return Config{
		Count:               100,
		PurchaseProbability: 0.05,
		AddProbability:      0.75,
		MinOps:              5,
		MaxOps:              25,
	}
}

// Validate checks ranges and that the probabilities leave a non-negative
// removal share.
func (c Config) Validate() error {
	switch {
	case c.Count < 0:
		return fmt.Errorf("count must be non-negative, got %d", c.Count)
	case math.IsNaN(c.PurchaseProbability) || math.IsNaN(c.AddProbability):
		return fmt.Errorf("probabilities must be numbers, got %v and %v", c.PurchaseProbability, c.AddProbability)
	case c.PurchaseProbability < 0 || c.PurchaseProbability > 1:
		return fmt.Errorf("purchase probability must be in [0,1], got %v", c.PurchaseProbability)
	case c.AddProbability < 0 || c.AddProbability > 1:
		return fmt.Errorf("add probability must be in [0,1], got %v", c.AddProbability)
	case c.PurchaseProbability+c.AddProbability > 1+1e-9:
		return fmt.Errorf("purchase + add probability must not exceed 1, got %v", c.PurchaseProbability+c.AddProbability)
	case c.MinOps < 0 || c.MaxOps < c.MinOps:
		return fmt.Errorf("operation range [%d,%d] is invalid", c.MinOps, c.MaxOps)
	}
	return nil
}

// Step is one transition of the per-user state machine.
type Step int

const (
	StepAdd Step = iota
	StepPurchase
	StepRemove
)

func (s Step) String() string {
	switch s {
	case StepAdd:
		return "add"
	case StepPurchase:
		return "purchase"
	case StepRemove:
		return "remove"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Generator produces users with random histories.
type Generator struct {
	cfg        Config
	catalog    []Product
	firstNames []string
	lastNames  []string
	rng        *rand.Rand
	logger     *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for per-user debug output.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logging.OrNop(l)
	}
}

// WithRand replaces the random source. Useful for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = r
	}
}

// New validates cfg and its inputs and returns a Generator.
func New(cfg Config, catalog []Product, firstNames, lastNames []string, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	if len(catalog) == 0 {
		return nil, errors.New("generator: empty catalog")
	}
	if len(firstNames) == 0 || len(lastNames) == 0 {
		return nil, errors.New("generator: empty name list")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	g := &Generator{
		cfg:        cfg,
		catalog:    catalog,
		firstNames: firstNames,
		lastNames:  lastNames,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate creates cfg.Count users and returns them as a validated Store.
func (g *Generator) Generate() (*store.Store, error) {
	users := make([]*store.User, 0, g.cfg.Count)
	for i := range g.cfg.Count {
		u, err := g.GenerateUser(i)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	s, err := store.New(users...)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	g.logger.Info("generated users", zap.Int("users", s.Len()))
	return s, nil
}

// GenerateUser creates one user with a random name and history. index makes
// the user id unique among users sharing a name.
func (g *Generator) GenerateUser(index int) (*store.User, error) {
	first := g.firstNames[g.rng.IntN(len(g.firstNames))]
	last := g.lastNames[g.rng.IntN(len(g.lastNames))]
	u := store.NewUser(hashString(first+" "+last+strconv.Itoa(index)), first, last)

	n := g.cfg.MinOps + g.rng.IntN(g.cfg.MaxOps-g.cfg.MinOps+1)
	for range n {
		step := g.NextStep(len(u.History.Available()))
		if err := g.apply(u.History, step); err != nil {
			return nil, fmt.Errorf("generator: user %s: %s: %w", u.ID, step, err)
		}
	}
	g.logger.Debug("generated user",
		zap.String("user_id", u.ID),
		zap.String("name", u.Name()),
		zap.Int("operations", u.History.Len()),
	)
	return u, nil
}

// NextStep draws the next transition given the current available count.
func (g *Generator) NextStep(available int) Step {
	if available < minAvailable {
		return StepAdd
	}
	r := g.rng.Float64()
	switch {
	case r < g.cfg.PurchaseProbability:
		return StepPurchase
	case r < g.cfg.PurchaseProbability+g.cfg.AddProbability:
		return StepAdd
	default:
		return StepRemove
	}
}

func (g *Generator) apply(h *history.History, step Step) error {
	switch step {
	case StepAdd:
		return g.Add(h)
	case StepPurchase:
		return g.Purchase(h)
	case StepRemove:
		return g.Remove(h)
	default:
		return fmt.Errorf("unknown step %d", int(step))
	}
}

// Add appends a new unpurchased addition of a random catalog product.
func (g *Generator) Add(h *history.History) error {
	p := g.catalog[g.rng.IntN(len(g.catalog))]
	return g.insert(h, history.Operation{
		ProductName: p.Name,
		Price:       p.Price,
		Kind:        history.Added,
	}, 0)
}

// Purchase marks a random available item as purchased.
func (g *Generator) Purchase(h *history.History) error {
	available := h.Available()
	if len(available) == 0 {
		return ErrNoAvailableItems
	}
	return h.MarkPurchased(available[g.rng.IntN(len(available))])
}

// Remove appends a removal of a random available item, retiring it.
func (g *Generator) Remove(h *history.History) error {
	available := h.Available()
	if len(available) == 0 {
		return ErrNoAvailableItems
	}
	target, _ := h.Get(available[g.rng.IntN(len(available))])
	targetID := target.ID
	return g.insert(h, history.Operation{
		ProductName: target.ProductName,
		Price:       target.Price,
		Kind:        history.Removed,
		ReversedID:  &targetID,
	}, 10000)
}

// insert assigns op an id derived from its product name and a random salt
// drawn from [minSalt, 999999], redrawing on collision.
func (g *Generator) insert(h *history.History, op history.Operation, minSalt int) error {
	var dup *history.DuplicateIDError
	for range maxIDAttempts {
		salt := minSalt + g.rng.IntN(999999-minSalt+1)
		op.ID = hashString(op.ProductName + strconv.Itoa(salt))
		err := h.Add(op)
		if err == nil {
			return nil
		}
		if !errors.As(err, &dup) {
			return err
		}
	}
	return fmt.Errorf("no unique operation id after %d attempts: %w", maxIDAttempts, dup)
}

// hashString returns the hex sha224 digest of s.
func hashString(s string) string {
	return fmt.Sprintf("%x", sha256.Sum224([]byte(s)))
}
