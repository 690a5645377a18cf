// Package session manages the per-entity conversational context: the
// versioned context blob, the credit-flow sub-context and the pending
// action slots.
//
// Every read-modify-write goes through Mutate, which retries once on a
// version conflict and then falls back to last-write-wins. A failed read
// is treated as an absent context so a fresh exchange can still start;
// it never surfaces to the lead.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// EntityKind distinguishes which context table a mutation targets.
type EntityKind string

const (
	KindLead  EntityKind = "lead"
	KindStaff EntityKind = "staff"
)

// Entity identifies a context owner.
type Entity struct {
	Kind EntityKind
	ID   string
}

// LeadEntity builds an Entity for a lead.
func LeadEntity(id string) Entity { return Entity{Kind: KindLead, ID: id} }

// StaffEntity builds an Entity for a staff member.
func StaffEntity(id string) Entity { return Entity{Kind: KindStaff, ID: id} }

// Manager provides versioned access to entity context blobs.
type Manager struct {
	store store.Store
}

// NewManager creates a context manager backed by a Store.
func NewManager(st store.Store) *Manager {
	slog.Debug("Creating session Manager")
	return &Manager{store: st}
}

// Load returns the current context blob for an entity. Read failures and
// missing entities degrade to an empty blob: a broken context must never
// block the conversation.
func (m *Manager) Load(ctx context.Context, e Entity) models.ContextBlob {
	blob, _, err := m.load(e)
	if err != nil {
		slog.Error("SessionManager Load failed, treating as absent", "error", err, "kind", e.Kind, "id", e.ID)
		return models.ContextBlob{}
	}
	return blob
}

func (m *Manager) load(e Entity) (models.ContextBlob, bool, error) {
	switch e.Kind {
	case KindStaff:
		member, err := m.store.GetStaffMember(e.ID)
		if err != nil {
			return models.ContextBlob{}, false, err
		}
		if member == nil {
			return models.ContextBlob{}, false, nil
		}
		return member.Context, true, nil
	default:
		lead, err := m.store.GetLead(e.ID)
		if err != nil {
			return models.ContextBlob{}, false, err
		}
		if lead == nil {
			return models.ContextBlob{}, false, nil
		}
		return lead.Context, true, nil
	}
}

func (m *Manager) save(e Entity, blob models.ContextBlob, expectedVersion int) error {
	if e.Kind == KindStaff {
		return m.store.UpdateStaffContext(e.ID, blob, expectedVersion)
	}
	return m.store.UpdateLeadContext(e.ID, blob, expectedVersion)
}

// Mutate loads the entity's context, applies fn and writes the result
// back guarded by the version read. On a conflict the cycle reruns once
// against the fresh blob; if it conflicts again the write goes through
// last-write-wins so a turn is never silently dropped.
func (m *Manager) Mutate(ctx context.Context, e Entity, fn func(*models.ContextBlob)) error {
	for attempt := 0; attempt < 2; attempt++ {
		blob, found, err := m.load(e)
		if err != nil {
			slog.Error("SessionManager Mutate read failed", "error", err, "kind", e.Kind, "id", e.ID)
			return err
		}
		if !found {
			if e.Kind == KindStaff {
				return models.ErrStaffNotFound
			}
			return models.ErrLeadNotFound
		}
		version := blob.Version
		fn(&blob)
		err = m.save(e, blob, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrContextConflict) {
			slog.Error("SessionManager Mutate write failed", "error", err, "kind", e.Kind, "id", e.ID)
			return err
		}
		slog.Warn("SessionManager Mutate version conflict, retrying", "kind", e.Kind, "id", e.ID, "attempt", attempt)
	}

	// Two conflicts in a row: concurrent writer is racing this turn.
	// Re-read and overwrite at whatever version is current.
	blob, found, err := m.load(e)
	if err != nil || !found {
		slog.Error("SessionManager Mutate forced write read failed", "error", err, "kind", e.Kind, "id", e.ID)
		return models.ErrContextConflict
	}
	fn(&blob)
	if err := m.save(e, blob, blob.Version); err != nil {
		slog.Error("SessionManager Mutate forced write failed", "error", err, "kind", e.Kind, "id", e.ID)
		return err
	}
	slog.Warn("SessionManager Mutate resolved conflict last-write-wins", "kind", e.Kind, "id", e.ID)
	return nil
}

// CreditFlow returns the lead's active credit-flow context, or nil when
// the lead has none (absent, completed or malformed).
func (m *Manager) CreditFlow(ctx context.Context, leadID string) *models.CreditFlowContext {
	blob := m.Load(ctx, LeadEntity(leadID))
	if !blob.CreditFlow.Active() {
		return nil
	}
	return blob.CreditFlow
}

// SaveCreditFlow stores the credit-flow context and refreshes the
// matching pending slot so the dispatcher keeps routing replies here.
func (m *Manager) SaveCreditFlow(ctx context.Context, leadID string, cf *models.CreditFlowContext) error {
	cf.UpdatedAt = time.Now()
	return m.Mutate(ctx, LeadEntity(leadID), func(blob *models.ContextBlob) {
		blob.CreditFlow = cf
		blob.SetSlot(models.SlotCreditFlow, &models.PendingSlot{SentAt: time.Now()})
	})
}

// ClearCreditFlow removes the credit-flow context and its pending slot.
func (m *Manager) ClearCreditFlow(ctx context.Context, leadID string) error {
	return m.Mutate(ctx, LeadEntity(leadID), func(blob *models.ContextBlob) {
		blob.CreditFlow = nil
		blob.ClearSlot(models.SlotCreditFlow)
	})
}

// SetSlot writes a pending slot on the entity's context.
func (m *Manager) SetSlot(ctx context.Context, e Entity, name models.SlotName, slot *models.PendingSlot) error {
	return m.Mutate(ctx, e, func(blob *models.ContextBlob) {
		blob.SetSlot(name, slot)
	})
}

// ClearSlot removes a pending slot. A failure is logged but not
// returned: a stale marker expires on its own, so a reply is never
// blocked on the cleanup write.
func (m *Manager) ClearSlot(ctx context.Context, e Entity, name models.SlotName) {
	if err := m.Mutate(ctx, e, func(blob *models.ContextBlob) {
		blob.ClearSlot(name)
	}); err != nil {
		slog.Error("SessionManager ClearSlot failed, slot will expire on its own", "error", err, "kind", e.Kind, "id", e.ID, "slot", name)
	}
}
