// Package campaign drives outreach cycles through their state machine:
// creation, initial sends, time-gated follow-ups, exhaustion with escalation,
// and response handling. All stage timing derives from persisted timestamps,
// so passes can run on any schedule and survive restarts.
package campaign

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/ai"
	"github.com/Erprabhat8423/beyond-academy/internal/outreach"
	"github.com/Erprabhat8423/beyond-academy/internal/selection"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// Deliverer sends one email, retrying internally as it sees fit. A returned
// error means delivery failed for good.
type Deliverer interface {
	Send(ctx context.Context, e outreach.Email) error
}

// Config carries the campaign knobs.
type Config struct {
	// StageInterval is the gap between consecutive stage emails. Follow-up
	// n is due at T0 + n*StageInterval; exhaustion is checked at
	// T0 + 4*StageInterval.
	StageInterval time.Duration `mapstructure:"stage-interval"`
	// WeeklyCompanyLimit caps emails per company per ISO week.
	WeeklyCompanyLimit int `mapstructure:"weekly-company-limit"`
	// Workers bounds concurrent cycle processing within one pass.
	Workers int `mapstructure:"workers"`
}

// DefaultConfig returns the production cadence: 48 hours between stages, one
// email per company per week, four workers.
func DefaultConfig() Config {
	return Config{
		StageInterval:      48 * time.Hour,
		WeeklyCompanyLimit: 1,
		Workers:            4,
	}
}

// Machine executes campaign passes against the store.
type Machine struct {
	store    *store.Store
	selector *selection.Selector
	sender   Deliverer
	refiner  ai.Refiner
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Machine. The now function is the machine's only clock; tests
// inject a fixed one.
func New(st *store.Store, selector *selection.Selector, sender Deliverer, refiner ai.Refiner, cfg Config, logger *zap.Logger, now func() time.Time) *Machine {
	if cfg.StageInterval <= 0 {
		cfg.StageInterval = DefaultConfig().StageInterval
	}
	if cfg.WeeklyCompanyLimit <= 0 {
		cfg.WeeklyCompanyLimit = DefaultConfig().WeeklyCompanyLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:    st,
		selector: selector,
		sender:   sender,
		refiner:  refiner,
		cfg:      cfg,
		logger:   logger,
		now:      now,
	}
}

// Report tallies the outcomes of one pass.
type Report struct {
	mu sync.Mutex

	Sent      int
	Deferred  int
	Failed    int
	Skipped   int
	Exhausted int
	Escalated int
}

func (r *Report) add(field *int, n int) {
	r.mu.Lock()
	*field += n
	r.mu.Unlock()
}

// Activity reports whether the pass did anything at all. Callers use this to
// distinguish an idle pass from real work.
func (r *Report) Activity() bool {
	return r.Sent+r.Failed+r.Exhausted+r.Escalated > 0
}

var stageNames = [4]string{
	store.StageInitial,
	store.StageFollowUp1,
	store.StageFollowUp2,
	store.StageFollowUp3,
}

var stageStates = [4]store.State{
	store.StateInitialSent,
	store.StateFollowUp1Sent,
	store.StateFollowUp2Sent,
	store.StateFollowUp3Sent,
}
