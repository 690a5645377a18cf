package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

type fakeNotifier struct {
	sent map[string][]string // phone -> bodies
	fail bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[string][]string)}
}

func (f *fakeNotifier) SendMessage(ctx context.Context, phone, body string) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.sent[phone] = append(f.sent[phone], body)
	return nil
}

type recordingSink struct {
	events []audit.Event
}

func (r *recordingSink) Record(ctx context.Context, ev audit.Event) {
	r.events = append(r.events, ev)
}

func seedAdvisors(t *testing.T, st *store.InMemoryStore) {
	t.Helper()
	advisors := []models.StaffMember{
		{ID: "adv-bbva", Phone: "+5211", Name: "Carla", Role: models.RoleCreditAdvisor, Active: true, LenderSpecialty: "BBVA Bancomer"},
		{ID: "adv-gen1", Phone: "+5212", Name: "Diego", Role: models.RoleCreditAdvisor, Active: true},
		{ID: "adv-gen2", Phone: "+5213", Name: "Elena", Role: models.RoleCreditAdvisor, Active: true},
	}
	for i := range advisors {
		if err := st.SaveStaffMember(&advisors[i]); err != nil {
			t.Fatalf("seed advisor: %v", err)
		}
	}
}

func TestPickPrefersLenderSpecialty(t *testing.T) {
	st := store.NewInMemoryStore()
	seedAdvisors(t, st)
	p := NewPicker(st)

	adv, err := p.Pick(context.Background(), "BBVA")
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if adv.ID != "adv-bbva" {
		t.Errorf("picked %q; want adv-bbva (specialty match)", adv.ID)
	}
}

func TestPickSpecialtyMatchBothDirections(t *testing.T) {
	st := store.NewInMemoryStore()
	st.SaveStaffMember(&models.StaffMember{ID: "a1", Phone: "+1", Role: models.RoleCreditAdvisor, Active: true, LenderSpecialty: "hsbc"})
	p := NewPicker(st)

	adv, err := p.Pick(context.Background(), "HSBC México")
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if adv.ID != "a1" {
		t.Errorf("picked %q; want a1", adv.ID)
	}
}

func TestPickLeastLoaded(t *testing.T) {
	st := store.NewInMemoryStore()
	seedAdvisors(t, st)
	// adv-bbva and adv-gen1 each carry one open application.
	st.UpsertFinancingApplication(&models.FinancingApplication{LeadID: "x1", AdvisorID: "adv-bbva", Status: models.ApplicationStatusPending})
	st.UpsertFinancingApplication(&models.FinancingApplication{LeadID: "x2", AdvisorID: "adv-gen1", Status: models.ApplicationStatusPending})
	p := NewPicker(st)

	adv, err := p.Pick(context.Background(), "Por definir")
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if adv.ID != "adv-gen2" {
		t.Errorf("picked %q; want adv-gen2 (zero load)", adv.ID)
	}
}

func TestPickTieKeepsRegistrationOrder(t *testing.T) {
	st := store.NewInMemoryStore()
	seedAdvisors(t, st)
	p := NewPicker(st)

	adv, err := p.Pick(context.Background(), "")
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if adv.ID != "adv-bbva" {
		t.Errorf("picked %q; want adv-bbva (first registered on tie)", adv.ID)
	}
}

func TestPickNoAdvisors(t *testing.T) {
	st := store.NewInMemoryStore()
	p := NewPicker(st)
	if _, err := p.Pick(context.Background(), "BBVA"); !errors.Is(err, models.ErrNoAdvisorSelected) {
		t.Errorf("err = %v; want ErrNoAdvisorSelected", err)
	}
}

func newEscalationFixture(t *testing.T) (*Escalator, *store.InMemoryStore, *fakeNotifier, *recordingSink) {
	t.Helper()
	st := store.NewInMemoryStore()
	seedAdvisors(t, st)
	n := newFakeNotifier()
	sink := &recordingSink{}
	return NewEscalator(st, n, sink, "+52ops"), st, n, sink
}

func qualifiedContext() *models.CreditFlowContext {
	down := int64(200000)
	return &models.CreditFlowContext{
		State:         models.StateAwaitModality,
		LeadName:      "Roberto García",
		Lender:        "BBVA",
		MonthlyIncome: 25000,
		DownPayment:   &down,
		Capacity:      950000,
		Modality:      models.ModalityPhone,
	}
}

func TestEscalateReassignsAndPreservesSalesperson(t *testing.T) {
	e, st, n, _ := newEscalationFixture(t)
	lead := &models.Lead{ID: "l1", Phone: "+52811", Name: "Roberto García", AssignedTo: "sales-1"}
	st.SaveLead(lead)

	adv, err := e.Escalate(context.Background(), lead, qualifiedContext())
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if adv.ID != "adv-bbva" {
		t.Errorf("advisor = %q; want adv-bbva", adv.ID)
	}

	saved, _ := st.GetLead("l1")
	if saved.AssignedTo != "adv-bbva" {
		t.Errorf("AssignedTo = %q; want adv-bbva", saved.AssignedTo)
	}
	if saved.PreviousAssignee != "sales-1" {
		t.Errorf("PreviousAssignee = %q; want sales-1", saved.PreviousAssignee)
	}
	if saved.Status != models.LeadStatusCreditQualified {
		t.Errorf("Status = %q; want credit_qualified", saved.Status)
	}
	if saved.CreditCapacity != 950000 {
		t.Errorf("CreditCapacity = %d; want 950000", saved.CreditCapacity)
	}

	app, _ := st.GetApplicationByLead("l1")
	if app == nil || app.AdvisorID != "adv-bbva" || app.Status != models.ApplicationStatusPending {
		t.Errorf("application = %+v; want pending on adv-bbva", app)
	}

	bodies := n.sent["+5211"]
	if len(bodies) != 1 || !strings.Contains(bodies[0], "Roberto García") {
		t.Errorf("advisor briefing = %v; want one message naming the lead", bodies)
	}
}

func TestEscalateIdempotentApplication(t *testing.T) {
	e, st, _, _ := newEscalationFixture(t)
	lead := &models.Lead{ID: "l1", Phone: "+52811", Name: "Roberto"}
	st.SaveLead(lead)
	cf := qualifiedContext()

	if _, err := e.Escalate(context.Background(), lead, cf); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if _, err := e.Escalate(context.Background(), lead, cf); err != nil {
		t.Fatalf("second escalate: %v", err)
	}
	apps, _ := st.ListApplications()
	if len(apps) != 1 {
		t.Errorf("got %d applications; want 1 (upsert, not insert)", len(apps))
	}
}

func TestEscalateNoAdvisorAlertsOps(t *testing.T) {
	st := store.NewInMemoryStore()
	n := newFakeNotifier()
	sink := &recordingSink{}
	e := NewEscalator(st, n, sink, "+52ops")
	lead := &models.Lead{ID: "l1", Phone: "+52811", Name: "Roberto"}
	st.SaveLead(lead)

	_, err := e.Escalate(context.Background(), lead, qualifiedContext())
	if !errors.Is(err, models.ErrNoAdvisorSelected) {
		t.Fatalf("err = %v; want ErrNoAdvisorSelected", err)
	}
	if len(n.sent["+52ops"]) != 1 {
		t.Errorf("ops alerts = %d; want 1", len(n.sent["+52ops"]))
	}
	if len(sink.events) != 1 || sink.events[0].Severity != audit.SeverityCritical {
		t.Errorf("audit events = %+v; want one critical", sink.events)
	}
}

func TestEscalateNotificationFailureDoesNotAbort(t *testing.T) {
	e, st, n, sink := newEscalationFixture(t)
	n.fail = true
	lead := &models.Lead{ID: "l1", Phone: "+52811", Name: "Roberto"}
	st.SaveLead(lead)

	adv, err := e.Escalate(context.Background(), lead, qualifiedContext())
	if err != nil || adv == nil {
		t.Fatalf("Escalate = %v, %v; notification failure must not abort", adv, err)
	}
	found := false
	for _, ev := range sink.events {
		if ev.Kind == "escalation_notify_failed" {
			found = true
		}
	}
	if !found {
		t.Error("expected escalation_notify_failed audit event")
	}
}
