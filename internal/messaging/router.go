package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/dispatch"
	"github.com/CasaLindaMX/LeadFlow/internal/genai"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
	"github.com/google/uuid"
)

// placeholderLeadName marks leads auto-created from an inbound message
// before they share a real name.
const placeholderLeadName = "Cliente WhatsApp"

// Router consumes inbound messages from a Service and drives the
// conversation: pending-action dispatch first, then credit-flow entry,
// then the AI fallback.
type Router struct {
	svc      Service
	store    store.Store
	sessions *session.Manager
	resolver *dispatch.Resolver
	engine   *creditflow.Engine
	gen      genai.Generator
}

// NewRouter wires a router and registers the credit-flow pending slot
// on the resolver. gen may be nil; unclaimed messages are then left for
// a human.
func NewRouter(svc Service, st store.Store, sessions *session.Manager, resolver *dispatch.Resolver, engine *creditflow.Engine, gen genai.Generator) *Router {
	r := &Router{
		svc:      svc,
		store:    st,
		sessions: sessions,
		resolver: resolver,
		engine:   engine,
		gen:      gen,
	}
	resolver.Register(models.SlotCreditFlow, r.creditFlowSlot)
	return r
}

// Run processes inbound messages until the context ends or the
// responses channel closes.
func (r *Router) Run(ctx context.Context) {
	slog.Info("Router started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Router stopping, context done")
			return
		case resp, ok := <-r.svc.Responses():
			if !ok {
				slog.Info("Router stopping, responses channel closed")
				return
			}
			r.HandleInbound(ctx, resp)
		}
	}
}

// HandleInbound routes one inbound message. Staff messages only go
// through pending-action dispatch; lead messages additionally get
// credit-flow entry and the AI fallback. Unknown senders become new
// leads.
func (r *Router) HandleInbound(ctx context.Context, resp models.Response) {
	from, err := r.svc.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("Router dropping message with invalid sender", "error", err, "from", resp.From)
		return
	}

	staff, err := r.store.GetStaffByPhone(from)
	if err != nil {
		slog.Error("Router staff lookup failed", "error", err, "from", from)
	}
	if staff != nil {
		if handled, _ := r.resolver.Resolve(ctx, session.StaffEntity(staff.ID), resp.Body); !handled {
			slog.Debug("Router staff message had no pending action", "staffID", staff.ID)
		}
		return
	}

	lead := r.leadFor(from)
	if lead == nil {
		return
	}

	if handled, _ := r.resolver.Resolve(ctx, session.LeadEntity(lead.ID), resp.Body); handled {
		return
	}

	if r.engine.ShouldStart(resp.Body) {
		res, err := r.engine.StartFlow(ctx, lead)
		if err != nil {
			slog.Error("Router StartFlow failed", "error", err, "leadID", lead.ID)
		} else if res.Reply != "" {
			r.send(ctx, from, res.Reply)
			return
		}
	}

	r.fallback(ctx, from, resp.Body)
}

// leadFor returns the lead for a phone number, creating one on first
// contact.
func (r *Router) leadFor(phone string) *models.Lead {
	lead, err := r.store.GetLeadByPhone(phone)
	if err != nil {
		slog.Error("Router lead lookup failed", "error", err, "phone", phone)
		return nil
	}
	if lead != nil {
		return lead
	}

	lead = &models.Lead{
		ID:        uuid.NewString(),
		Phone:     phone,
		Name:      placeholderLeadName,
		Status:    models.LeadStatusNew,
		CreatedAt: time.Now(),
	}
	if err := r.store.SaveLead(lead); err != nil {
		slog.Error("Router lead create failed", "error", err, "phone", phone)
		return nil
	}
	slog.Info("Router created lead from first contact", "leadID", lead.ID)
	return lead
}

// creditFlowSlot feeds a message to the flow engine. A handoff result
// declines the message so it falls through to the AI fallback.
func (r *Router) creditFlowSlot(ctx context.Context, e session.Entity, slot *models.PendingSlot, text string) (bool, error) {
	if e.Kind != session.KindLead {
		return false, nil
	}
	res, err := r.engine.HandleReply(ctx, e.ID, text)
	if err != nil {
		return false, err
	}
	if res.HandoffToAI {
		return false, nil
	}
	lead, err := r.store.GetLead(e.ID)
	if err != nil || lead == nil {
		slog.Error("Router creditFlowSlot lead read failed", "error", err, "leadID", e.ID)
		return true, nil
	}
	r.send(ctx, lead.Phone, res.Reply)
	return true, nil
}

// fallback asks the AI assistant for a reply. Without a generator, or
// on failure, the message is left for a human.
func (r *Router) fallback(ctx context.Context, phone, text string) {
	if r.gen == nil {
		slog.Debug("Router has no AI generator, leaving message for a human", "phone", phone)
		return
	}
	replyText, err := r.gen.GenerateReply(ctx, text)
	if err != nil {
		slog.Error("Router AI fallback failed, leaving message for a human", "error", err, "phone", phone)
		return
	}
	r.send(ctx, phone, replyText)
}

func (r *Router) send(ctx context.Context, to, body string) {
	if err := r.svc.SendMessage(ctx, to, body); err != nil {
		slog.Error("Router send failed", "error", err, "to", to)
	}
}
