// Package dispatch routes an incoming message to the pending action that
// is waiting for it.
//
// Each entity's context blob carries named pending slots ("we asked X,
// the next message answers X"). The resolver walks a fixed priority
// table, finds the first slot that is still live, and hands the message
// to that slot's handler. Expired slots are invisible to the scan but
// are left in place; they are overwritten or cleared by their own
// handlers.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
)

// Handler consumes a message addressed to a live pending slot. It
// returns false to decline; the message then falls back to the caller,
// never to lower-priority slots.
type Handler func(ctx context.Context, e session.Entity, slot *models.PendingSlot, text string) (bool, error)

// Rule binds a slot to its maximum age and handler.
type Rule struct {
	Slot    models.SlotName
	MaxAge  time.Duration
	Handler Handler
}

// Default slot lifetimes. A slot older than its lifetime no longer owns
// the entity's incoming messages.
const (
	TTLBridgeSession     = 30 * time.Minute
	TTLLeadSelection     = 10 * time.Minute
	TTLMessageRelay      = 30 * time.Minute
	TTLBirthdayResponse  = 24 * time.Hour
	TTLVisitConfirmation = 24 * time.Hour
	TTLEventRSVP         = 48 * time.Hour
	TTLAppointmentAction = 24 * time.Hour
	TTLCreditFlow        = 24 * time.Hour
	TTLAutoResponse      = 1 * time.Hour
	TTLBroadcastReply    = 24 * time.Hour
)

// PriorityOrder is the canonical dispatch order, highest priority first.
var PriorityOrder = []models.SlotName{
	models.SlotBridgeSession,
	models.SlotLeadSelection,
	models.SlotMessageRelay,
	models.SlotBirthdayResponse,
	models.SlotVisitConfirmation,
	models.SlotEventRSVP,
	models.SlotAppointmentAction,
	models.SlotCreditFlow,
	models.SlotAutoResponse,
	models.SlotBroadcastReply,
}

// DefaultTTL maps each slot to its default lifetime.
var DefaultTTL = map[models.SlotName]time.Duration{
	models.SlotBridgeSession:     TTLBridgeSession,
	models.SlotLeadSelection:     TTLLeadSelection,
	models.SlotMessageRelay:      TTLMessageRelay,
	models.SlotBirthdayResponse:  TTLBirthdayResponse,
	models.SlotVisitConfirmation: TTLVisitConfirmation,
	models.SlotEventRSVP:         TTLEventRSVP,
	models.SlotAppointmentAction: TTLAppointmentAction,
	models.SlotCreditFlow:        TTLCreditFlow,
	models.SlotAutoResponse:      TTLAutoResponse,
	models.SlotBroadcastReply:    TTLBroadcastReply,
}

// Resolver dispatches messages against an entity's pending slots.
type Resolver struct {
	sessions *session.Manager
	rules    []Rule
	now      func() time.Time
}

// NewResolver creates a resolver with no handlers registered. Handlers
// are attached with Register; slots without a handler are skipped.
func NewResolver(sessions *session.Manager) *Resolver {
	slog.Debug("Creating dispatch Resolver")
	return &Resolver{sessions: sessions, now: time.Now}
}

// Register attaches a handler for a slot at its default lifetime.
func (r *Resolver) Register(slot models.SlotName, h Handler) {
	r.RegisterTTL(slot, DefaultTTL[slot], h)
}

// RegisterTTL attaches a handler with an explicit lifetime. Rules keep
// the canonical priority order regardless of registration order.
func (r *Resolver) RegisterTTL(slot models.SlotName, maxAge time.Duration, h Handler) {
	r.rules = append(r.rules, Rule{Slot: slot, MaxAge: maxAge, Handler: h})
	slog.Debug("Resolver registered handler", "slot", slot, "maxAge", maxAge)
}

func (r *Resolver) ruleFor(slot models.SlotName) *Rule {
	for i := range r.rules {
		if r.rules[i].Slot == slot {
			return &r.rules[i]
		}
	}
	return nil
}

// Resolve finds the highest-priority live slot for the entity and hands
// the message to its handler. The first live slot owns the message:
// lower-priority slots never see it, so dispatch stays deterministic.
// The returned owner names the owning slot (empty when no slot was
// live) so the caller can tell "owned but declined" from "nothing
// pending". Handler errors are logged and reported as a decline.
func (r *Resolver) Resolve(ctx context.Context, e session.Entity, text string) (handled bool, owner models.SlotName) {
	blob := r.sessions.Load(ctx, e)
	if len(blob.Slots) == 0 {
		return false, ""
	}
	now := r.now()

	for _, name := range PriorityOrder {
		rule := r.ruleFor(name)
		if rule == nil || rule.Handler == nil {
			continue
		}
		slot := blob.Slot(name)
		if !slot.Live(now, rule.MaxAge) {
			continue
		}
		slog.Debug("Resolver dispatching to slot", "slot", name, "kind", e.Kind, "id", e.ID)
		handled, err := rule.Handler(ctx, e, slot, text)
		if err != nil {
			slog.Error("Resolver handler failed", "error", err, "slot", name, "kind", e.Kind, "id", e.ID)
			return false, name
		}
		if !handled {
			slog.Debug("Resolver slot declined message", "slot", name, "kind", e.Kind, "id", e.ID)
		}
		return handled, name
	}
	return false, ""
}
