package advisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CasaLindaMX/LeadFlow/internal/audit"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
	"github.com/CasaLindaMX/LeadFlow/internal/util"
)

// Escalator reassigns qualified leads to credit advisors and opens their
// financing applications.
type Escalator struct {
	store    store.Store
	picker   *Picker
	notifier Notifier
	audit    audit.Sink
	opsPhone string
}

// NewEscalator creates an escalator. opsPhone receives an alert when no
// advisor can be assigned; empty disables the alert.
func NewEscalator(st store.Store, notifier Notifier, sink audit.Sink, opsPhone string) *Escalator {
	return &Escalator{
		store:    st,
		picker:   NewPicker(st),
		notifier: notifier,
		audit:    sink,
		opsPhone: opsPhone,
	}
}

// Escalate hands the lead to a credit advisor: picks the advisor,
// reassigns the lead (preserving the original salesperson), upserts the
// financing application and notifies the advisor.
//
// Storage and notification failures are audited but do not abort the
// escalation: the lead has already been told an advisor is coming, so
// the remaining steps still run and humans clean up from the audit
// trail. Only "no advisor exists" is returned as an error.
func (e *Escalator) Escalate(ctx context.Context, lead *models.Lead, cf *models.CreditFlowContext) (*models.StaffMember, error) {
	adv, err := e.picker.Pick(ctx, cf.Lender)
	if err != nil {
		e.audit.Record(ctx, audit.Event{
			Kind:     "escalation_unassigned",
			Severity: audit.SeverityCritical,
			Message:  "no credit advisor available for qualified lead",
			LeadID:   lead.ID,
		})
		if e.opsPhone != "" && e.notifier != nil {
			body := fmt.Sprintf("⚠️ Lead calificado sin asesor: %s (%s). Asignar manualmente.", lead.Name, lead.Phone)
			if nerr := e.notifier.SendMessage(ctx, e.opsPhone, body); nerr != nil {
				slog.Error("Escalator ops alert failed", "error", nerr, "leadID", lead.ID)
			}
		}
		return nil, err
	}

	// Reassign, keeping the salesperson who owned the lead before the
	// advisor so appointments and follow-ups still reach them.
	if lead.AssignedTo != "" && lead.AssignedTo != adv.ID {
		lead.PreviousAssignee = lead.AssignedTo
	}
	lead.AssignedTo = adv.ID
	lead.Status = models.LeadStatusCreditQualified
	lead.PreferredLender = cf.Lender
	lead.MonthlyIncome = cf.MonthlyIncome
	if cf.DownPayment != nil {
		lead.DownPayment = *cf.DownPayment
	}
	lead.CreditCapacity = cf.Capacity
	if err := e.store.SaveLead(lead); err != nil {
		e.audit.Record(ctx, audit.Event{
			Kind:     "escalation_lead_write_failed",
			Severity: audit.SeverityCritical,
			Message:  "lead reassignment not persisted during escalation",
			LeadID:   lead.ID,
			StaffID:  adv.ID,
		})
	}

	down := int64(0)
	if cf.DownPayment != nil {
		down = *cf.DownPayment
	}
	app := &models.FinancingApplication{
		LeadID:          lead.ID,
		AdvisorID:       adv.ID,
		Lender:          cf.Lender,
		MonthlyIncome:   cf.MonthlyIncome,
		DownPayment:     down,
		RequestedAmount: cf.Capacity,
		Status:          models.ApplicationStatusPending,
	}
	if err := e.store.UpsertFinancingApplication(app); err != nil {
		e.audit.Record(ctx, audit.Event{
			Kind:     "escalation_application_write_failed",
			Severity: audit.SeverityCritical,
			Message:  "financing application not persisted during escalation",
			LeadID:   lead.ID,
			StaffID:  adv.ID,
		})
	}

	if e.notifier != nil {
		if err := e.notifier.SendMessage(ctx, adv.Phone, advisorBriefing(lead, cf)); err != nil {
			slog.Error("Escalator advisor notification failed", "error", err, "leadID", lead.ID, "advisorID", adv.ID)
			e.audit.Record(ctx, audit.Event{
				Kind:     "escalation_notify_failed",
				Severity: audit.SeverityWarning,
				Message:  "advisor was assigned but not notified",
				LeadID:   lead.ID,
				StaffID:  adv.ID,
			})
		}
	}

	slog.Info("Escalator assigned lead to advisor", "leadID", lead.ID, "advisorID", adv.ID, "lender", cf.Lender, "modality", cf.Modality)
	return adv, nil
}

// advisorBriefing is the WhatsApp summary an advisor receives when a
// qualified lead lands on their desk.
func advisorBriefing(lead *models.Lead, cf *models.CreditFlowContext) string {
	name := lead.Name
	if name == "" {
		name = cf.LeadName
	}
	down := int64(0)
	if cf.DownPayment != nil {
		down = *cf.DownPayment
	}
	modality := string(cf.Modality)
	if modality == "" {
		modality = "whatsapp"
	}
	msg := fmt.Sprintf("🆕 *Nuevo prospecto calificado*\n\n"+
		"👤 %s\n📱 %s\n🏦 Banco: %s\n"+
		"💵 Ingreso mensual: $%s\n💰 Enganche: $%s\n"+
		"🏠 Capacidad estimada: $%s\n📞 Prefiere contacto por: %s",
		name, lead.Phone, cf.Lender,
		util.FormatAmount(cf.MonthlyIncome), util.FormatAmount(down),
		util.FormatAmount(cf.Capacity), modality)
	if cf.Development != "" {
		msg += "\n🏘️ Desarrollo de interés: " + cf.Development
	}
	return msg
}
