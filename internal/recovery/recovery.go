// Package recovery restores conversation state after a restart. Flow
// progress lives in the store, so recovery is a sweep: leads with a
// live credit-flow context resume where they left off, and contexts
// that went stale while the process was down are abandoned so the lead
// is not interrogated days later.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// DefaultStaleAfter matches the credit-flow pending slot lifetime: a
// context untouched this long no longer owns the conversation.
const DefaultStaleAfter = 24 * time.Hour

// ReasonRestartExpired is recorded when a restart sweep abandons a
// stale flow.
const ReasonRestartExpired = "restart_expired"

// Manager runs the startup sweep.
type Manager struct {
	store      store.Store
	engine     *creditflow.Engine
	staleAfter time.Duration
	now        func() time.Time
}

// NewManager creates a recovery manager with the default staleness
// window.
func NewManager(st store.Store, engine *creditflow.Engine) *Manager {
	return &Manager{
		store:      st,
		engine:     engine,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Run sweeps all leads with an active credit flow. Returns the number
// of flows resumed and the number abandoned as stale.
func (m *Manager) Run(ctx context.Context) (resumed, abandoned int) {
	leads, err := m.store.ListLeadsInCreditFlow()
	if err != nil {
		slog.Error("Recovery sweep query failed", "error", err)
		return 0, 0
	}
	now := m.now()

	for _, lead := range leads {
		cf := lead.Context.CreditFlow
		if cf == nil {
			continue
		}
		age := now.Sub(cf.UpdatedAt)
		if cf.UpdatedAt.IsZero() {
			age = now.Sub(cf.CreatedAt)
		}
		if age > m.staleAfter {
			slog.Info("Recovery abandoning stale credit flow", "leadID", lead.ID, "state", cf.State, "age", age)
			m.engine.Cancel(ctx, lead.ID, ReasonRestartExpired)
			abandoned++
			continue
		}
		slog.Debug("Recovery resuming credit flow", "leadID", lead.ID, "state", cf.State)
		resumed++
	}

	slog.Info("Recovery sweep completed", "resumed", resumed, "abandoned", abandoned)
	return resumed, abandoned
}
