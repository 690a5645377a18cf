package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/advisor"
	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/dispatch"
	"github.com/CasaLindaMX/LeadFlow/internal/genai"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

type sentMessage struct {
	To   string
	Body string
}

// testService is an in-process Service for router tests.
type testService struct {
	sent      []sentMessage
	responses chan models.Response
	receipts  chan models.Receipt
}

func newTestService() *testService {
	return &testService{
		responses: make(chan models.Response, 8),
		receipts:  make(chan models.Receipt, 8),
	}
}

func (s *testService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (s *testService) SendMessage(ctx context.Context, to string, body string) error {
	s.sent = append(s.sent, sentMessage{To: to, Body: body})
	return nil
}

func (s *testService) Start(ctx context.Context) error { return nil }

func (s *testService) Stop() error { return nil }

func (s *testService) Receipts() <-chan models.Receipt { return s.receipts }

func (s *testService) Responses() <-chan models.Response { return s.responses }

type staticGenerator struct {
	reply string
	calls int
}

func (g *staticGenerator) GenerateReply(ctx context.Context, userMessage string) (string, error) {
	g.calls++
	return g.reply, nil
}

func newTestRouter(t *testing.T, st *store.InMemoryStore, gen *staticGenerator) (*Router, *testService) {
	t.Helper()
	svc := newTestService()
	sessions := session.NewManager(st)
	sink := audit.NewSlogSink()
	esc := advisor.NewEscalator(st, svc, sink, "5210000000000")
	engine := creditflow.NewEngine(st, sessions, esc, sink)
	resolver := dispatch.NewResolver(sessions)
	var g genai.Generator
	if gen != nil {
		g = gen
	}
	return NewRouter(svc, st, sessions, resolver, engine, g), svc
}

func TestRouterCreatesLeadOnFirstContact(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &staticGenerator{reply: "¡Hola! ¿En qué te ayudo?"}
	router, svc := newTestRouter(t, st, gen)

	router.HandleInbound(context.Background(), models.Response{
		From: "+52 1 811 555 0101",
		Body: "Hola, buenas tardes",
		Time: time.Now().Unix(),
	})

	lead, err := st.GetLeadByPhone("5218115550101")
	if err != nil || lead == nil {
		t.Fatalf("expected auto-created lead, got %v, %v", lead, err)
	}
	if lead.Name != placeholderLeadName {
		t.Errorf("expected placeholder name, got %q", lead.Name)
	}
	if gen.calls != 1 {
		t.Errorf("expected AI fallback for greeting, got %d calls", gen.calls)
	}
	if len(svc.sent) != 1 || svc.sent[0].Body != gen.reply {
		t.Errorf("expected AI reply sent, got %v", svc.sent)
	}
}

func TestRouterStartsCreditFlowOnIntent(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &staticGenerator{reply: "respuesta generica"}
	router, svc := newTestRouter(t, st, gen)

	router.HandleInbound(context.Background(), models.Response{
		From: "5218115550102",
		Body: "Quiero información sobre un crédito hipotecario",
	})

	if len(svc.sent) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(svc.sent))
	}
	if !strings.Contains(svc.sent[0].Body, "nombre") {
		t.Errorf("expected name question, got %q", svc.sent[0].Body)
	}
	if gen.calls != 0 {
		t.Errorf("credit intent must not reach the AI fallback")
	}

	lead, _ := st.GetLeadByPhone("5218115550102")
	if lead == nil || lead.Status != models.LeadStatusCreditFlow {
		t.Fatalf("expected lead in credit flow, got %+v", lead)
	}
}

func TestRouterDispatchesReplyIntoActiveFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	router, svc := newTestRouter(t, st, nil)
	ctx := context.Background()

	router.HandleInbound(ctx, models.Response{From: "5218115550103", Body: "quiero un credito"})
	svc.sent = nil

	router.HandleInbound(ctx, models.Response{From: "5218115550103", Body: "Me llamo Laura Méndez"})

	if len(svc.sent) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(svc.sent))
	}
	if !strings.Contains(svc.sent[0].Body, "Laura Méndez") {
		t.Errorf("expected lender question addressing the lead, got %q", svc.sent[0].Body)
	}
	lead, _ := st.GetLeadByPhone("5218115550103")
	if lead == nil || lead.Name != "Laura Méndez" {
		t.Errorf("expected captured name on lead, got %+v", lead)
	}
}

func TestRouterOffTopicCancelFallsThroughToAI(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &staticGenerator{reply: "Las casas están en Apodaca"}
	router, svc := newTestRouter(t, st, gen)
	ctx := context.Background()

	router.HandleInbound(ctx, models.Response{From: "5218115550104", Body: "necesito financiamiento"})
	svc.sent = nil

	router.HandleInbound(ctx, models.Response{From: "5218115550104", Body: "mejor dime dónde queda el desarrollo"})

	if gen.calls != 1 {
		t.Fatalf("expected off-topic reply to reach the AI fallback, got %d calls", gen.calls)
	}
	if len(svc.sent) != 1 || svc.sent[0].Body != gen.reply {
		t.Errorf("expected AI reply sent, got %v", svc.sent)
	}

	lead, _ := st.GetLeadByPhone("5218115550104")
	if lead == nil {
		t.Fatal("lead missing")
	}
	if lead.Context.CreditFlow.Active() {
		t.Error("expected flow cancelled after off-topic reply")
	}
}

func TestRouterStaffMessageDoesNotCreateLead(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.SaveStaffMember(&models.StaffMember{
		ID:     "staff-1",
		Name:   "Pedro",
		Phone:  "5218110000001",
		Role:   models.RoleSalesperson,
		Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	router, svc := newTestRouter(t, st, nil)

	router.HandleInbound(context.Background(), models.Response{From: "5218110000001", Body: "ok"})

	if lead, _ := st.GetLeadByPhone("5218110000001"); lead != nil {
		t.Errorf("staff phone must not become a lead, got %+v", lead)
	}
	if len(svc.sent) != 0 {
		t.Errorf("expected no outbound message, got %v", svc.sent)
	}
}

func TestRouterInvalidSenderDropped(t *testing.T) {
	st := store.NewInMemoryStore()
	router, svc := newTestRouter(t, st, nil)

	router.HandleInbound(context.Background(), models.Response{From: "???", Body: "hola"})

	if len(svc.sent) != 0 {
		t.Errorf("expected no outbound message for invalid sender, got %v", svc.sent)
	}
}

func TestRouterSilentWithoutGenerator(t *testing.T) {
	st := store.NewInMemoryStore()
	router, svc := newTestRouter(t, st, nil)

	router.HandleInbound(context.Background(), models.Response{From: "5218115550105", Body: "Hola"})

	if len(svc.sent) != 0 {
		t.Errorf("expected silence without a generator, got %v", svc.sent)
	}
	if lead, _ := st.GetLeadByPhone("5218115550105"); lead == nil {
		t.Error("lead should still be created")
	}
}
