// Package advisor selects credit advisors and runs the escalation that
// hands a qualified lead from the bot to a human.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CasaLindaMX/LeadFlow/internal/extract"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/store"
)

// Notifier sends an outbound text to a phone number. Notification
// failures never abort an escalation; they are logged and audited.
// Satisfied by any messaging service.
type Notifier interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Picker chooses which advisor takes a new financing application.
type Picker struct {
	store store.Store
}

// NewPicker creates an advisor picker backed by a Store.
func NewPicker(st store.Store) *Picker {
	return &Picker{store: st}
}

// specialtyMatches reports whether an advisor's specialty and a lender
// name refer to the same institution. The comparison is substring in
// both directions so "BBVA Bancomer" matches "bbva".
func specialtyMatches(specialty, lender string) bool {
	if specialty == "" || lender == "" {
		return false
	}
	a := strings.ToLower(specialty)
	b := strings.ToLower(lender)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Pick selects the advisor for a lead with the given lender preference.
// A specialty match wins outright; otherwise the advisor with the
// fewest open applications takes it, earlier-registered advisors
// winning ties. Returns models.ErrNoAdvisorSelected when no active
// advisor exists.
func (p *Picker) Pick(ctx context.Context, preferredLender string) (*models.StaffMember, error) {
	advisors, err := p.store.ListActiveStaff(models.RoleCreditAdvisor)
	if err != nil {
		slog.Error("Picker.Pick failed to list advisors", "error", err)
		return nil, fmt.Errorf("failed to list advisors: %w", err)
	}
	if len(advisors) == 0 {
		slog.Warn("Picker.Pick found no active credit advisors")
		return nil, models.ErrNoAdvisorSelected
	}

	if preferredLender != "" && preferredLender != extract.LenderUnspecified {
		for i := range advisors {
			if specialtyMatches(advisors[i].LenderSpecialty, preferredLender) {
				slog.Debug("Picker.Pick matched lender specialty", "advisorID", advisors[i].ID, "lender", preferredLender)
				return &advisors[i], nil
			}
		}
	}

	best := 0
	bestLoad := -1
	for i := range advisors {
		load, err := p.store.CountOpenApplications(advisors[i].ID)
		if err != nil {
			slog.Error("Picker.Pick failed to count load, assuming zero", "error", err, "advisorID", advisors[i].ID)
			load = 0
		}
		if bestLoad == -1 || load < bestLoad {
			best = i
			bestLoad = load
		}
	}
	slog.Debug("Picker.Pick selected least-loaded advisor", "advisorID", advisors[best].ID, "openApplications", bestLoad)
	return &advisors[best], nil
}
