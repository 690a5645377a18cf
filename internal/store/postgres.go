// Package store provides storage backends for LeadFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}

func (s *PostgresStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "leadID", id)
		return nil, err
	}
	return lead, nil
}

func (s *PostgresStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	if phone == "" {
		return nil, models.ErrEmptyPhone
	}
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	lead, err := scanLead(row)
	if err != nil {
		slog.Error("PostgresStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return lead, nil
}

func (s *PostgresStore) SaveLead(lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	lead.UpdatedAt = time.Now()
	rawContext, err := encodeContext(lead.Context)
	if err != nil {
		slog.Error("PostgresStore SaveLead context encode failed", "error", err, "leadID", lead.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			phone = EXCLUDED.phone,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			assigned_to = EXCLUDED.assigned_to,
			previous_assignee = EXCLUDED.previous_assignee,
			property_interest = EXCLUDED.property_interest,
			monthly_income = EXCLUDED.monthly_income,
			down_payment = EXCLUDED.down_payment,
			preferred_lender = EXCLUDED.preferred_lender,
			credit_capacity = EXCLUDED.credit_capacity,
			context = EXCLUDED.context,
			context_version = EXCLUDED.context_version,
			updated_at = EXCLUDED.updated_at`,
		lead.ID, lead.Phone, lead.Name, lead.Status, lead.AssignedTo, lead.PreviousAssignee,
		lead.PropertyInterest, lead.MonthlyIncome, lead.DownPayment, lead.PreferredLender,
		lead.CreditCapacity, rawContext, lead.Context.Version, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to save lead %s: %w", lead.ID, err)
	}
	slog.Debug("PostgresStore SaveLead succeeded", "leadID", lead.ID)
	return nil
}

func (s *PostgresStore) UpdateLeadContext(leadID string, blob models.ContextBlob, expectedVersion int) error {
	blob.Version = expectedVersion + 1
	rawContext, err := encodeContext(blob)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadContext encode failed", "error", err, "leadID", leadID)
		return err
	}
	res, err := s.db.Exec(`
		UPDATE leads SET context = $1, context_version = $2, updated_at = $3
		WHERE id = $4 AND context_version = $5`,
		rawContext, blob.Version, time.Now(), leadID, expectedVersion)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadContext failed", "error", err, "leadID", leadID)
		return fmt.Errorf("failed to update lead context %s: %w", leadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check context update result: %w", err)
	}
	if n == 0 {
		existing, err := s.GetLead(leadID)
		if err != nil {
			return err
		}
		if existing == nil {
			return models.ErrLeadNotFound
		}
		slog.Warn("PostgresStore UpdateLeadContext version conflict", "leadID", leadID, "expected", expectedVersion, "actual", existing.Context.Version)
		return models.ErrContextConflict
	}
	slog.Debug("PostgresStore UpdateLeadContext succeeded", "leadID", leadID, "version", blob.Version)
	return nil
}

func (s *PostgresStore) ListLeadsInCreditFlow() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY id`, models.LeadStatusCreditFlow)
	if err != nil {
		slog.Error("PostgresStore ListLeadsInCreditFlow query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads in credit flow: %w", err)
	}
	defer rows.Close()
	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore ListLeadsInCreditFlow scan failed", "error", err)
			return nil, err
		}
		if lead.Context.CreditFlow.Active() {
			leads = append(leads, *lead)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) GetStaffMember(id string) (*models.StaffMember, error) {
	row := s.db.QueryRow(`SELECT `+staffColumns+` FROM team_members WHERE id = $1`, id)
	m, err := scanStaff(row)
	if err != nil {
		slog.Error("PostgresStore GetStaffMember failed", "error", err, "staffID", id)
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) GetStaffByPhone(phone string) (*models.StaffMember, error) {
	row := s.db.QueryRow(`SELECT `+staffColumns+` FROM team_members WHERE phone = $1`, phone)
	m, err := scanStaff(row)
	if err != nil {
		slog.Error("PostgresStore GetStaffByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListActiveStaff(role models.StaffRole) ([]models.StaffMember, error) {
	query := `SELECT ` + staffColumns + ` FROM team_members WHERE active ORDER BY created_at, id`
	args := []any{}
	if role != "" {
		query = `SELECT ` + staffColumns + ` FROM team_members WHERE active AND role = $1 ORDER BY created_at, id`
		args = append(args, role)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListActiveStaff query failed", "error", err, "role", role)
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()
	var staff []models.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			slog.Error("PostgresStore ListActiveStaff scan failed", "error", err)
			return nil, err
		}
		staff = append(staff, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate staff rows: %w", err)
	}
	return staff, nil
}

func (s *PostgresStore) SaveStaffMember(m *models.StaffMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	rawContext, err := encodeContext(m.Context)
	if err != nil {
		slog.Error("PostgresStore SaveStaffMember context encode failed", "error", err, "staffID", m.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO team_members (`+staffColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			phone = EXCLUDED.phone,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			lender_specialty = EXCLUDED.lender_specialty,
			context = EXCLUDED.context,
			context_version = EXCLUDED.context_version`,
		m.ID, m.Phone, m.Name, m.Role, m.Active, m.LenderSpecialty,
		rawContext, m.Context.Version, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveStaffMember failed", "error", err, "staffID", m.ID)
		return fmt.Errorf("failed to save staff member %s: %w", m.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStaffContext(staffID string, blob models.ContextBlob, expectedVersion int) error {
	blob.Version = expectedVersion + 1
	rawContext, err := encodeContext(blob)
	if err != nil {
		slog.Error("PostgresStore UpdateStaffContext encode failed", "error", err, "staffID", staffID)
		return err
	}
	res, err := s.db.Exec(`
		UPDATE team_members SET context = $1, context_version = $2
		WHERE id = $3 AND context_version = $4`,
		rawContext, blob.Version, staffID, expectedVersion)
	if err != nil {
		slog.Error("PostgresStore UpdateStaffContext failed", "error", err, "staffID", staffID)
		return fmt.Errorf("failed to update staff context %s: %w", staffID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check context update result: %w", err)
	}
	if n == 0 {
		existing, err := s.GetStaffMember(staffID)
		if err != nil {
			return err
		}
		if existing == nil {
			return models.ErrStaffNotFound
		}
		slog.Warn("PostgresStore UpdateStaffContext version conflict", "staffID", staffID, "expected", expectedVersion)
		return models.ErrContextConflict
	}
	return nil
}

func (s *PostgresStore) UpsertFinancingApplication(app *models.FinancingApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO financing_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lead_id) DO UPDATE SET
			advisor_id = EXCLUDED.advisor_id,
			lender = EXCLUDED.lender,
			monthly_income = EXCLUDED.monthly_income,
			down_payment = EXCLUDED.down_payment,
			requested_amount = EXCLUDED.requested_amount,
			updated_at = EXCLUDED.updated_at`,
		app.ID, app.LeadID, app.AdvisorID, app.Lender, app.MonthlyIncome,
		app.DownPayment, app.RequestedAmount, app.Status, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertFinancingApplication failed", "error", err, "leadID", app.LeadID)
		return fmt.Errorf("failed to upsert application for lead %s: %w", app.LeadID, err)
	}
	slog.Debug("PostgresStore UpsertFinancingApplication succeeded", "leadID", app.LeadID, "advisorID", app.AdvisorID)
	return nil
}

func (s *PostgresStore) GetApplicationByLead(leadID string) (*models.FinancingApplication, error) {
	row := s.db.QueryRow(`SELECT `+applicationColumns+` FROM financing_applications WHERE lead_id = $1`, leadID)
	app, err := scanApplication(row)
	if err != nil {
		slog.Error("PostgresStore GetApplicationByLead failed", "error", err, "leadID", leadID)
		return nil, err
	}
	return app, nil
}

func (s *PostgresStore) CountOpenApplications(staffID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM financing_applications
		WHERE advisor_id = $1 AND status IN (`+openStatusList()+`)`, staffID).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountOpenApplications failed", "error", err, "staffID", staffID)
		return 0, fmt.Errorf("failed to count open applications for %s: %w", staffID, err)
	}
	return count, nil
}

func (s *PostgresStore) ListApplications() ([]models.FinancingApplication, error) {
	rows, err := s.db.Query(`SELECT ` + applicationColumns + ` FROM financing_applications ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListApplications query failed", "error", err)
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()
	var apps []models.FinancingApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application rows: %w", err)
	}
	return apps, nil
}

func (s *PostgresStore) CreateAppointment(a *models.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.LeadID, a.When, a.Development, a.Status, a.AssignedTo, a.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateAppointment failed", "error", err, "leadID", a.LeadID)
		return fmt.Errorf("failed to create appointment for lead %s: %w", a.LeadID, err)
	}
	slog.Debug("PostgresStore CreateAppointment succeeded", "leadID", a.LeadID, "when", a.When)
	return nil
}

func (s *PostgresStore) ListAppointmentsBetween(from, to time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(`
		SELECT `+appointmentColumns+` FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2 ORDER BY scheduled_at`, from, to)
	if err != nil {
		slog.Error("PostgresStore ListAppointmentsBetween query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	var appts []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	return appts, nil
}

func (s *PostgresStore) ListDevelopments() ([]models.Development, error) {
	rows, err := s.db.Query(`SELECT id, name, price FROM developments ORDER BY price`)
	if err != nil {
		slog.Error("PostgresStore ListDevelopments query failed", "error", err)
		return nil, fmt.Errorf("failed to query developments: %w", err)
	}
	defer rows.Close()
	var devs []models.Development
	for rows.Next() {
		var d models.Development
		if err := rows.Scan(&d.ID, &d.Name, &d.Price); err != nil {
			return nil, fmt.Errorf("failed to scan development row: %w", err)
		}
		devs = append(devs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate development rows: %w", err)
	}
	return devs, nil
}

func (s *PostgresStore) RecordAbandonment(rec *models.AbandonmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO abandonments (id, lead_id, state, reason, lender, income, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.LeadID, rec.State, rec.Reason, rec.Lender, rec.Income, rec.RecordedAt)
	if err != nil {
		slog.Error("PostgresStore RecordAbandonment failed", "error", err, "leadID", rec.LeadID)
		return fmt.Errorf("failed to record abandonment for lead %s: %w", rec.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) ListAbandonments(leadID string) ([]models.AbandonmentRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, lead_id, state, reason, lender, income, recorded_at
		FROM abandonments WHERE lead_id = $1 ORDER BY recorded_at`, leadID)
	if err != nil {
		slog.Error("PostgresStore ListAbandonments query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query abandonments: %w", err)
	}
	defer rows.Close()
	var recs []models.AbandonmentRecord
	for rows.Next() {
		var r models.AbandonmentRecord
		if err := rows.Scan(&r.ID, &r.LeadID, &r.State, &r.Reason, &r.Lender, &r.Income, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan abandonment row: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate abandonment rows: %w", err)
	}
	return recs, nil
}
