package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/advisor"
	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) SendMessage(ctx context.Context, to string, body string) error { return nil }

func seedLeadInFlow(t *testing.T, st *store.InMemoryStore, id string, updatedAt time.Time) {
	t.Helper()
	lead := &models.Lead{
		ID:     id,
		Phone:  "521811000" + id,
		Name:   "Cliente WhatsApp",
		Status: models.LeadStatusCreditFlow,
		Context: models.ContextBlob{
			CreditFlow: &models.CreditFlowContext{
				State:     models.StateAwaitIncome,
				CreatedAt: updatedAt,
				UpdatedAt: updatedAt,
			},
		},
	}
	if err := st.SaveLead(lead); err != nil {
		t.Fatal(err)
	}
}

func TestRunResumesFreshAndAbandonsStale(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	seedLeadInFlow(t, st, "fresh", now.Add(-2*time.Hour))
	seedLeadInFlow(t, st, "stale", now.Add(-48*time.Hour))

	sessions := session.NewManager(st)
	sink := audit.NewSlogSink()
	esc := advisor.NewEscalator(st, noopNotifier{}, sink, "")
	engine := creditflow.NewEngine(st, sessions, esc, sink)

	m := NewManager(st, engine)
	m.now = func() time.Time { return now }

	resumed, abandoned := m.Run(context.Background())
	if resumed != 1 || abandoned != 1 {
		t.Fatalf("expected 1 resumed, 1 abandoned; got %d, %d", resumed, abandoned)
	}

	fresh, _ := st.GetLead("fresh")
	if !fresh.Context.CreditFlow.Active() {
		t.Error("fresh flow should remain active")
	}

	stale, _ := st.GetLead("stale")
	if stale.Context.CreditFlow.Active() {
		t.Error("stale flow should be cleared")
	}
	recs, err := st.ListAbandonments("stale")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Reason != ReasonRestartExpired {
		t.Errorf("expected restart_expired abandonment, got %v", recs)
	}
}

func TestRunEmptyStore(t *testing.T) {
	st := store.NewInMemoryStore()
	sessions := session.NewManager(st)
	sink := audit.NewSlogSink()
	esc := advisor.NewEscalator(st, noopNotifier{}, sink, "")
	engine := creditflow.NewEngine(st, sessions, esc, sink)

	resumed, abandoned := NewManager(st, engine).Run(context.Background())
	if resumed != 0 || abandoned != 0 {
		t.Errorf("expected empty sweep, got %d, %d", resumed, abandoned)
	}
}
