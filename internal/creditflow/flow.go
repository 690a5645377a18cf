// Package creditflow implements the credit qualification conversation:
// a persisted finite-state machine that walks a lead from first intent
// to a scheduled visit, simulating loan options and escalating to a
// human advisor along the way.
//
// The engine is stateless between turns. All progress lives in the
// lead's credit-flow context; every handler reads it, mutates it and
// persists it at defined checkpoints. A persistence failure never
// blocks the reply: the lead always gets an answer, and the next turn
// may re-read slightly stale state.
package creditflow

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/advisor"
	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/extract"
	"github.com/CasaLindaMX/LeadFlow/internal/finance"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/session"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// Result is one turn's outcome. HandoffToAI means "no canned reply;
// let the general assistant answer".
type Result struct {
	Reply       string
	HandoffToAI bool
}

func handoff() Result { return Result{HandoffToAI: true} }

func reply(text string) Result { return Result{Reply: text} }

// Abandonment reasons recorded for analytics.
const (
	ReasonOffTopic         = "off_topic"
	ReasonAlreadyQualified = "already_qualified"
	ReasonComplexReply     = "complex_reply"
	ReasonManual           = "manual"
)

// maxDevelopmentOptions bounds the budget-filtered list shown to a lead.
const maxDevelopmentOptions = 3

// budgetHeadroomPercent lets a development slightly above capacity still
// be offered (sellers negotiate, leads stretch).
const budgetHeadroomPercent = 110

// Engine runs the credit qualification flow.
type Engine struct {
	store     store.Store
	sessions  *session.Manager
	escalator *advisor.Escalator
	audit     audit.Sink
	now       func() time.Time
}

// NewEngine creates a flow engine.
func NewEngine(st store.Store, sessions *session.Manager, esc *advisor.Escalator, sink audit.Sink) *Engine {
	slog.Debug("Creating creditflow Engine")
	return &Engine{
		store:     st,
		sessions:  sessions,
		escalator: esc,
		audit:     sink,
		now:       time.Now,
	}
}

// ShouldStart reports whether an incoming message from a lead with no
// active flow should open one.
func (e *Engine) ShouldStart(text string) bool {
	return extract.CreditIntent(text)
}

// StartFlow opens a credit-flow context for the lead and returns the
// first question. Skips the name question when a real name is already
// on file. If a flow is already active the current state's prompt is
// repeated instead of resetting progress.
func (e *Engine) StartFlow(ctx context.Context, lead *models.Lead) (Result, error) {
	if existing := e.sessions.CreditFlow(ctx, lead.ID); existing != nil {
		slog.Debug("StartFlow: flow already active, re-prompting", "leadID", lead.ID, "state", existing.State)
		return reply(e.promptFor(existing)), nil
	}

	now := e.now()
	cf := &models.CreditFlowContext{
		State:           models.StateAskName,
		OriginalStaffID: lead.AssignedTo,
		CreatedAt:       now,
	}
	var first string
	if lead.HasRealName() {
		cf.LeadName = lead.Name
		cf.State = models.StateAwaitLender
		first = msgAskLender(lead.Name)
	} else {
		first = msgAskName()
	}

	lead.Status = models.LeadStatusCreditFlow
	if err := e.store.SaveLead(lead); err != nil {
		slog.Error("StartFlow lead status write failed", "error", err, "leadID", lead.ID)
	}
	e.save(ctx, lead.ID, cf)
	slog.Info("StartFlow opened credit flow", "leadID", lead.ID, "state", cf.State)
	return reply(first), nil
}

// HandleReply advances the flow one turn. Off-topic and
// already-qualified detection runs before any state parsing and cancels
// the flow; a lead with no active flow is handed off untouched.
func (e *Engine) HandleReply(ctx context.Context, leadID, text string) (Result, error) {
	lead, err := e.store.GetLead(leadID)
	if err != nil {
		slog.Error("HandleReply lead read failed, handing off", "error", err, "leadID", leadID)
		return handoff(), nil
	}
	if lead == nil {
		slog.Warn("HandleReply unknown lead, handing off", "leadID", leadID)
		return handoff(), nil
	}
	cf := e.sessions.CreditFlow(ctx, leadID)
	if cf == nil {
		return handoff(), nil
	}

	if extract.AlreadyQualified(text) {
		return e.cancel(ctx, lead, cf, ReasonAlreadyQualified), nil
	}
	if extract.OffTopic(text) {
		return e.cancel(ctx, lead, cf, ReasonOffTopic), nil
	}

	switch cf.State {
	case models.StateAskName:
		return e.handleAskName(ctx, lead, cf, text), nil
	case models.StateAwaitLender:
		return e.handleAwaitLender(ctx, lead, cf, text), nil
	case models.StateOfferSimulation:
		return e.handleOfferSimulation(ctx, lead, cf, text), nil
	case models.StateAwaitIncome:
		return e.handleAwaitIncome(ctx, lead, cf, text), nil
	case models.StateAwaitDownPayment:
		return e.handleAwaitDownPayment(ctx, lead, cf, text), nil
	case models.StateShowSimulation:
		return e.resumeSimulation(ctx, lead, cf), nil
	case models.StateAwaitModality:
		return e.handleAwaitModality(ctx, lead, cf, text), nil
	case models.StateAwaitVisit:
		return e.handleAwaitVisit(ctx, lead, cf, text), nil
	default:
		slog.Error("HandleReply unknown flow state, clearing", "leadID", leadID, "state", cf.State)
		if err := e.sessions.ClearCreditFlow(ctx, leadID); err != nil {
			slog.Error("HandleReply context clear failed", "error", err, "leadID", leadID)
		}
		return handoff(), nil
	}
}

// Cancel clears the lead's flow from outside a turn (operator command,
// timeout sweep). A lead with no active flow is a no-op: no duplicate
// abandonment record is written.
func (e *Engine) Cancel(ctx context.Context, leadID, reason string) {
	cf := e.sessions.CreditFlow(ctx, leadID)
	if cf == nil {
		return
	}
	lead, err := e.store.GetLead(leadID)
	if err != nil || lead == nil {
		slog.Error("Cancel lead read failed", "error", err, "leadID", leadID)
		return
	}
	e.cancel(ctx, lead, cf, reason)
}

// cancel clears the context, records the abandonment and hands off.
func (e *Engine) cancel(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, reason string) Result {
	rec := &models.AbandonmentRecord{
		LeadID: lead.ID,
		State:  string(cf.State),
		Reason: reason,
		Lender: cf.Lender,
		Income: cf.MonthlyIncome,
	}
	if err := e.store.RecordAbandonment(rec); err != nil {
		slog.Error("cancel abandonment write failed", "error", err, "leadID", lead.ID, "state", cf.State)
	}
	// The lead leaves the flow but stays in the funnel. An escalated
	// lead keeps credit_qualified. Status first: SaveLead carries the
	// whole row, so it must not run after the context clear.
	if lead.Status == models.LeadStatusCreditFlow {
		lead.Status = models.LeadStatusContacted
		if err := e.store.SaveLead(lead); err != nil {
			slog.Error("cancel lead status write failed", "error", err, "leadID", lead.ID)
		}
	}
	if err := e.sessions.ClearCreditFlow(ctx, lead.ID); err != nil {
		slog.Error("cancel context clear failed", "error", err, "leadID", lead.ID)
	}
	slog.Info("credit flow cancelled", "leadID", lead.ID, "state", cf.State, "reason", reason)
	return handoff()
}

// save persists the context. Failures are logged and audited, never
// surfaced: the reply still goes out (the next turn may re-read stale
// state).
func (e *Engine) save(ctx context.Context, leadID string, cf *models.CreditFlowContext) {
	if err := e.sessions.SaveCreditFlow(ctx, leadID, cf); err != nil {
		slog.Error("credit flow state write failed, replying anyway", "error", err, "leadID", leadID, "state", cf.State)
		e.audit.Record(ctx, audit.Event{
			Kind:     "flow_state_write_failed",
			Severity: audit.SeverityWarning,
			Message:  "flow state not persisted; next turn may repeat",
			LeadID:   leadID,
		})
	}
}

func (e *Engine) handleAskName(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	name, ok := extract.Name(text)
	if !ok {
		return reply(msgAskNameRetry())
	}
	cf.LeadName = name
	cf.State = models.StateAwaitLender
	lead.Name = name
	if err := e.store.SaveLead(lead); err != nil {
		slog.Error("handleAskName lead name write failed", "error", err, "leadID", lead.ID)
	}
	e.save(ctx, lead.ID, cf)
	return reply(msgAskLender(name))
}

func (e *Engine) handleAwaitLender(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	lender, ok := extract.Lender(text)
	if ok {
		cf.Lender = lender
		cf.State = models.StateOfferSimulation
		e.save(ctx, lead.ID, cf)
		return reply(msgOfferSimulation(lender))
	}
	if !extract.IsSimpleReply(text) {
		// Long unrecognized text is conversation, not an answer.
		return e.cancel(ctx, lead, cf, ReasonComplexReply)
	}
	return reply(msgAskLenderRetry())
}

func (e *Engine) handleOfferSimulation(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	switch {
	case isAffirmative(text):
		cf.State = models.StateAwaitIncome
		e.save(ctx, lead.ID, cf)
		return reply(msgAskIncome())
	case isNegative(text):
		cf.State = models.StateAwaitModality
		e.save(ctx, lead.ID, cf)
		return reply(msgAskModality())
	default:
		return reply(msgOfferSimulationRetry())
	}
}

func (e *Engine) handleAwaitIncome(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	if !extract.IsSimpleReply(text) {
		return e.cancel(ctx, lead, cf, ReasonComplexReply)
	}
	amount, ok := extract.Amount(text)
	if !ok {
		return reply(msgAskIncomeRetry())
	}
	if amount < finance.MinMonthlyIncome {
		return reply(msgIncomeBelowMinimum())
	}
	cf.MonthlyIncome = amount
	cf.State = models.StateAwaitDownPayment
	e.save(ctx, lead.ID, cf)
	return reply(msgAskDownPayment())
}

// zeroDownPhrases map an explicit "I have nothing" to a valid 0.
var zeroDownPhrases = []string{"no tengo", "nada", "ninguno", "sin enganche", "no cuento", "0"}

func isZeroDownPayment(text string) bool {
	lower := strings.TrimSpace(strings.ToLower(text))
	for _, p := range zeroDownPhrases {
		if lower == p || strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (e *Engine) handleAwaitDownPayment(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	var down int64
	switch {
	case isZeroDownPayment(text):
		down = 0
	case !extract.IsSimpleReply(text):
		return e.cancel(ctx, lead, cf, ReasonComplexReply)
	default:
		amount, ok := extract.Amount(text)
		if !ok {
			return reply(msgAskDownPaymentRetry())
		}
		down = amount
	}

	cf.DownPayment = &down
	capacity := finance.ComputeCapacity(cf.MonthlyIncome, down)
	cf.Capacity = capacity.MaxTotal

	// Checkpoint before the simulation so a crash mid-turn resumes with
	// both figures captured.
	cf.State = models.StateShowSimulation
	e.save(ctx, lead.ID, cf)

	return e.showSimulation(ctx, lead, cf, capacity)
}

// resumeSimulation picks up a context checkpointed at the simulation:
// the figures were captured but the turn died before the comparison
// went out. Recompute from the persisted income and down payment and
// render it now, whatever the lead just said.
func (e *Engine) resumeSimulation(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext) Result {
	if cf.DownPayment == nil {
		slog.Error("resumeSimulation checkpoint missing down payment, re-asking", "leadID", lead.ID)
		cf.State = models.StateAwaitDownPayment
		e.save(ctx, lead.ID, cf)
		return reply(msgAskDownPaymentRetry())
	}
	slog.Info("resumeSimulation resuming from checkpoint", "leadID", lead.ID, "income", cf.MonthlyIncome)
	capacity := finance.ComputeCapacity(cf.MonthlyIncome, *cf.DownPayment)
	cf.Capacity = capacity.MaxTotal
	return e.showSimulation(ctx, lead, cf, capacity)
}

// showSimulation renders the lender comparison and auto-advances to the
// modality question in the same turn.
func (e *Engine) showSimulation(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, capacity finance.Capacity) Result {
	opts := finance.Simulate(cf.MonthlyIncome, *cf.DownPayment, cf.Lender)
	cf.State = models.StateAwaitModality
	e.save(ctx, lead.ID, cf)
	if len(opts) == 0 {
		// Income was validated on capture; an empty panel means it was
		// lost, so fall back to the plain modality question.
		slog.Error("showSimulation produced no options", "leadID", lead.ID, "income", cf.MonthlyIncome)
		return reply(msgAskModality())
	}
	return reply(msgSimulation(opts, capacity))
}

func (e *Engine) handleAwaitModality(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	modality, ok := extract.Modality(text)
	if !ok {
		return reply(msgAskModalityRetry())
	}
	cf.Modality = models.ContactModality(modality)
	visitInvite := e.developmentOptions(cf.Capacity)

	if cf.Modality == models.ModalityInPerson {
		cf.State = models.StateAwaitVisit
		e.save(ctx, lead.ID, cf)
		return reply(visitInvite)
	}

	// Phone/chat: hand the lead to an advisor, then keep pushing toward
	// a visit. Escalation does not end the flow.
	header := msgAdvisorPendingAssignment()
	adv, err := e.escalator.Escalate(ctx, lead, cf)
	if err == nil {
		cf.AdvisorID = adv.ID
		cf.AdvisorName = adv.Name
		cf.AdvisorPhone = adv.Phone
		header = msgAdvisorAssigned(adv.Name, cf.Modality)
	}
	cf.State = models.StateAwaitVisit
	e.save(ctx, lead.ID, cf)
	return reply(header + "\n\n" + visitInvite)
}

// developmentOptions builds the budget-filtered visit invitation: up to
// three developments priced within the headroom of the lead's capacity,
// or a generic fallback when none qualify (or no capacity was computed).
func (e *Engine) developmentOptions(capacity int64) string {
	devs, err := e.store.ListDevelopments()
	if err != nil {
		slog.Error("developmentOptions read failed, using fallback", "error", err)
		return msgDevelopmentsFallback()
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Price < devs[j].Price })

	var fits []models.Development
	for _, d := range devs {
		if capacity > 0 && d.Price*100 <= capacity*budgetHeadroomPercent {
			fits = append(fits, d)
			if len(fits) == maxDevelopmentOptions {
				break
			}
		}
	}
	if len(fits) == 0 {
		return msgDevelopmentsFallback()
	}
	return msgDevelopments(fits)
}

func (e *Engine) handleAwaitVisit(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext, text string) Result {
	captured := e.captureDevelopment(cf, text)
	v := extract.ParseVisitDateTime(text, e.now())

	switch {
	case !v.HasDate && !v.HasTime:
		if captured {
			e.save(ctx, lead.ID, cf)
		}
		return reply(msgVisitDateTimeRetry())
	case v.HasDate && !v.HasTime:
		if closingHour(v.Date.Weekday()) == 0 {
			return reply(msgOutOfHours(v.Date.Weekday()))
		}
		if captured {
			e.save(ctx, lead.ID, cf)
		}
		return reply(msgAskVisitTime())
	case !v.HasDate && v.HasTime:
		if captured {
			e.save(ctx, lead.ID, cf)
		}
		return reply(msgAskVisitDate())
	}

	when := v.At()
	if !withinBusinessHours(when) {
		if captured {
			e.save(ctx, lead.ID, cf)
		}
		return reply(msgOutOfHours(when.Weekday()))
	}

	// The visit belongs to the salesperson who originally owned the
	// lead, not the credit advisor.
	assignedTo := cf.OriginalStaffID
	if assignedTo == "" {
		assignedTo = lead.PreviousAssignee
	}
	if assignedTo == "" {
		assignedTo = lead.AssignedTo
	}
	appt := &models.Appointment{
		LeadID:      lead.ID,
		When:        when,
		Development: cf.Development,
		Status:      models.AppointmentStatusScheduled,
		AssignedTo:  assignedTo,
	}
	if err := e.store.CreateAppointment(appt); err != nil {
		slog.Error("handleAwaitVisit appointment write failed", "error", err, "leadID", lead.ID, "when", when)
		e.audit.Record(ctx, audit.Event{
			Kind:     "appointment_write_failed",
			Severity: audit.SeverityCritical,
			Message:  "visit confirmed to lead but not persisted",
			LeadID:   lead.ID,
			StaffID:  assignedTo,
		})
	}

	cf.State = models.StateCompleted
	lead.Status = models.LeadStatusCreditQualified
	if err := e.store.SaveLead(lead); err != nil {
		slog.Error("handleAwaitVisit lead status write failed", "error", err, "leadID", lead.ID)
	}
	if err := e.sessions.ClearCreditFlow(ctx, lead.ID); err != nil {
		slog.Error("handleAwaitVisit context clear failed", "error", err, "leadID", lead.ID)
	}
	slog.Info("credit flow completed with appointment", "leadID", lead.ID, "when", when, "assignedTo", assignedTo)
	return reply(msgAppointmentConfirmed(when, cf.Development))
}

// captureDevelopment opportunistically records a development named in
// the text, whatever else the message says.
func (e *Engine) captureDevelopment(cf *models.CreditFlowContext, text string) bool {
	devs, err := e.store.ListDevelopments()
	if err != nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, d := range devs {
		if d.Name != "" && strings.Contains(lower, strings.ToLower(d.Name)) {
			cf.Development = d.Name
			return true
		}
	}
	return false
}

// promptFor repeats the question matching the flow's current state.
func (e *Engine) promptFor(cf *models.CreditFlowContext) string {
	switch cf.State {
	case models.StateAskName:
		return msgAskNameRetry()
	case models.StateAwaitLender:
		return msgAskLenderRetry()
	case models.StateOfferSimulation:
		return msgOfferSimulationRetry()
	case models.StateAwaitIncome:
		return msgAskIncomeRetry()
	case models.StateAwaitDownPayment:
		return msgAskDownPaymentRetry()
	case models.StateAwaitModality:
		return msgAskModalityRetry()
	case models.StateAwaitVisit:
		return msgVisitDateTimeRetry()
	default:
		return msgAskModalityRetry()
	}
}

// isAffirmative recognizes a yes to the simulation offer.
func isAffirmative(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "1") || strings.Contains(lower, "simula") || strings.Contains(lower, "claro") {
		return true
	}
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!?¡¿")
		if w == "si" || w == "sí" || w == "ok" || w == "dale" {
			return true
		}
	}
	return false
}

// isNegative recognizes a no / "human now" answer.
func isNegative(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "2") || strings.Contains(lower, "asesor") || strings.Contains(lower, "humano") {
		return true
	}
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!?¡¿")
		if w == "no" {
			return true
		}
	}
	return false
}
