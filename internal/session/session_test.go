package session

import (
	"context"
	"testing"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SaveLead(&models.Lead{ID: "l1", Phone: "+521811"}); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return NewManager(st), st
}

func TestLoadAbsentLeadReturnsEmptyBlob(t *testing.T) {
	m, _ := newTestManager(t)
	blob := m.Load(context.Background(), LeadEntity("ghost"))
	if blob.Version != 0 || blob.CreditFlow != nil || len(blob.Slots) != 0 {
		t.Errorf("expected empty blob, got %+v", blob)
	}
}

func TestMutateBumpsVersion(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	err := m.Mutate(ctx, LeadEntity("l1"), func(blob *models.ContextBlob) {
		blob.SetSlot(models.SlotAutoResponse, &models.PendingSlot{SentAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	lead, _ := st.GetLead("l1")
	if lead.Context.Version != 1 {
		t.Errorf("version = %d; want 1", lead.Context.Version)
	}
	if lead.Context.Slot(models.SlotAutoResponse) == nil {
		t.Error("slot not persisted")
	}
}

func TestMutateRetriesOnConflict(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	fired := false
	err := m.Mutate(ctx, LeadEntity("l1"), func(blob *models.ContextBlob) {
		// A concurrent writer lands between our read and our write,
		// exactly once.
		if !fired {
			fired = true
			st.UpdateLeadContext("l1", models.ContextBlob{}, 0)
		}
		blob.SetSlot(models.SlotCreditFlow, &models.PendingSlot{SentAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("Mutate should survive a single conflict: %v", err)
	}
	lead, _ := st.GetLead("l1")
	if lead.Context.Slot(models.SlotCreditFlow) == nil {
		t.Error("mutation lost after conflict retry")
	}
	if lead.Context.Version != 2 {
		t.Errorf("version = %d; want 2 (concurrent write + retried write)", lead.Context.Version)
	}
}

func TestCreditFlowLifecycle(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	if cf := m.CreditFlow(ctx, "l1"); cf != nil {
		t.Fatalf("expected no active flow, got %+v", cf)
	}

	err := m.SaveCreditFlow(ctx, "l1", &models.CreditFlowContext{State: models.StateAskName})
	if err != nil {
		t.Fatalf("SaveCreditFlow: %v", err)
	}
	cf := m.CreditFlow(ctx, "l1")
	if cf == nil || cf.State != models.StateAskName {
		t.Fatalf("CreditFlow = %+v; want pedir_nombre", cf)
	}
	lead, _ := st.GetLead("l1")
	if lead.Context.Slot(models.SlotCreditFlow) == nil {
		t.Error("SaveCreditFlow should refresh the pending slot")
	}

	if err := m.ClearCreditFlow(ctx, "l1"); err != nil {
		t.Fatalf("ClearCreditFlow: %v", err)
	}
	if cf := m.CreditFlow(ctx, "l1"); cf != nil {
		t.Errorf("flow still active after clear: %+v", cf)
	}
	lead, _ = st.GetLead("l1")
	if lead.Context.Slot(models.SlotCreditFlow) != nil {
		t.Error("pending slot should be cleared with the flow")
	}
}

func TestTerminalStateIsNotActive(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.SaveCreditFlow(ctx, "l1", &models.CreditFlowContext{State: models.StateCompleted}); err != nil {
		t.Fatalf("SaveCreditFlow: %v", err)
	}
	if cf := m.CreditFlow(ctx, "l1"); cf != nil {
		t.Errorf("completed flow should read as absent, got %+v", cf)
	}
}

func TestStaffContext(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	st.SaveStaffMember(&models.StaffMember{ID: "s1", Phone: "+52812", Role: models.RoleSalesperson, Active: true})

	err := m.SetSlot(ctx, StaffEntity("s1"), models.SlotMessageRelay, &models.PendingSlot{SentAt: time.Now()})
	if err != nil {
		t.Fatalf("SetSlot: %v", err)
	}
	blob := m.Load(ctx, StaffEntity("s1"))
	if blob.Slot(models.SlotMessageRelay) == nil {
		t.Error("staff slot not persisted")
	}

	m.ClearSlot(ctx, StaffEntity("s1"), models.SlotMessageRelay)
	blob = m.Load(ctx, StaffEntity("s1"))
	if blob.Slot(models.SlotMessageRelay) != nil {
		t.Error("staff slot not cleared")
	}
}
