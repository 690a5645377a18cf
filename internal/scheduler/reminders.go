package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// DefaultReminderCron runs the appointment sweep every morning before
// the office opens.
const DefaultReminderCron = "0 8 * * *"

// Notifier sends a text to a phone number.
type Notifier interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ReminderJob texts each salesperson their appointments for the day.
type ReminderJob struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

// NewReminderJob creates the daily appointment reminder job.
func NewReminderJob(st store.Store, notifier Notifier) *ReminderJob {
	return &ReminderJob{store: st, notifier: notifier, now: time.Now}
}

// Run sweeps today's appointments and notifies the assigned staff.
// Failures on one appointment never stop the sweep.
func (j *ReminderJob) Run(ctx context.Context) {
	now := j.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)

	appts, err := j.store.ListAppointmentsBetween(from, to)
	if err != nil {
		slog.Error("ReminderJob appointment query failed", "error", err)
		return
	}
	slog.Debug("ReminderJob sweeping appointments", "count", len(appts), "day", from.Format("2006-01-02"))

	for _, a := range appts {
		if a.AssignedTo == "" {
			slog.Warn("ReminderJob appointment has no assignee", "appointmentID", a.ID, "leadID", a.LeadID)
			continue
		}
		staff, err := j.store.GetStaffMember(a.AssignedTo)
		if err != nil || staff == nil {
			slog.Error("ReminderJob staff lookup failed", "error", err, "staffID", a.AssignedTo)
			continue
		}

		leadName := "un prospecto"
		if lead, err := j.store.GetLead(a.LeadID); err == nil && lead != nil && lead.HasRealName() {
			leadName = lead.Name
		}

		place := "oficinas"
		if a.Development != "" {
			place = a.Development
		}
		body := fmt.Sprintf("📅 Recordatorio: hoy a las %d:%02d tienes visita con %s en %s.",
			a.When.Hour(), a.When.Minute(), leadName, place)

		if err := j.notifier.SendMessage(ctx, staff.Phone, body); err != nil {
			slog.Error("ReminderJob notification failed", "error", err, "staffID", staff.ID)
			continue
		}
		slog.Info("ReminderJob reminder sent", "staffID", staff.ID, "leadID", a.LeadID, "when", a.When)
	}
}
