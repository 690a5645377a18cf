package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// encodeContext marshals a context blob for storage. The version is
// duplicated into its own column so compare-and-swap updates can run as
// a single guarded UPDATE.
func encodeContext(blob models.ContextBlob) ([]byte, error) {
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context blob: %w", err)
	}
	return data, nil
}

// decodeContext unmarshals a stored context blob, normalizing the version
// from the dedicated column. A corrupt blob is reported and replaced with
// an empty one rather than failing the whole read.
func decodeContext(raw []byte, version int) models.ContextBlob {
	var blob models.ContextBlob
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &blob); err != nil {
			slog.Error("decodeContext: malformed context blob, resetting", "error", err)
			blob = models.ContextBlob{}
		}
	}
	blob.Version = version
	return blob
}

const leadColumns = `id, phone, name, status, assigned_to, previous_assignee, property_interest,
	monthly_income, down_payment, preferred_lender, credit_capacity, context, context_version,
	created_at, updated_at`

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var rawContext []byte
	var version int
	err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Status, &l.AssignedTo, &l.PreviousAssignee,
		&l.PropertyInterest, &l.MonthlyIncome, &l.DownPayment, &l.PreferredLender,
		&l.CreditCapacity, &rawContext, &version, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead row: %w", err)
	}
	l.Context = decodeContext(rawContext, version)
	return &l, nil
}

const staffColumns = `id, phone, name, role, active, lender_specialty, context, context_version, created_at`

func scanStaff(row rowScanner) (*models.StaffMember, error) {
	var m models.StaffMember
	var rawContext []byte
	var version int
	err := row.Scan(&m.ID, &m.Phone, &m.Name, &m.Role, &m.Active, &m.LenderSpecialty,
		&rawContext, &version, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan staff row: %w", err)
	}
	m.Context = decodeContext(rawContext, version)
	return &m, nil
}

const applicationColumns = `id, lead_id, advisor_id, lender, monthly_income, down_payment,
	requested_amount, status, created_at, updated_at`

func scanApplication(row rowScanner) (*models.FinancingApplication, error) {
	var a models.FinancingApplication
	err := row.Scan(&a.ID, &a.LeadID, &a.AdvisorID, &a.Lender, &a.MonthlyIncome,
		&a.DownPayment, &a.RequestedAmount, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application row: %w", err)
	}
	return &a, nil
}

const appointmentColumns = `id, lead_id, scheduled_at, development, status, assigned_to, created_at`

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(&a.ID, &a.LeadID, &a.When, &a.Development, &a.Status, &a.AssignedTo, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan appointment row: %w", err)
	}
	return &a, nil
}

// openStatusList renders the open-status list inline. Statuses are
// internal constants, never user input.
func openStatusList() string {
	out := ""
	for i, s := range models.OpenApplicationStatuses {
		if i > 0 {
			out += ", "
		}
		out += "'" + string(s) + "'"
	}
	return out
}
