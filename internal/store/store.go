// Package store provides storage backends for LeadFlow.
//
// It persists leads, staff members, appointments, financing applications
// and flow-abandonment records, with PostgreSQL and SQLite backends plus
// an in-memory store for tests.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
)

// Store is the persistence interface consumed by the flow engine.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	// Leads
	GetLead(id string) (*models.Lead, error)
	GetLeadByPhone(phone string) (*models.Lead, error)
	SaveLead(lead *models.Lead) error
	// UpdateLeadContext writes the context blob only when the stored
	// version still equals expectedVersion, then bumps it. Returns
	// models.ErrContextConflict on a stale write.
	UpdateLeadContext(leadID string, blob models.ContextBlob, expectedVersion int) error
	ListLeadsInCreditFlow() ([]models.Lead, error)

	// Staff
	GetStaffMember(id string) (*models.StaffMember, error)
	GetStaffByPhone(phone string) (*models.StaffMember, error)
	ListActiveStaff(role models.StaffRole) ([]models.StaffMember, error)
	SaveStaffMember(m *models.StaffMember) error
	UpdateStaffContext(staffID string, blob models.ContextBlob, expectedVersion int) error

	// Financing applications
	UpsertFinancingApplication(app *models.FinancingApplication) error
	GetApplicationByLead(leadID string) (*models.FinancingApplication, error)
	CountOpenApplications(staffID string) (int, error)
	ListApplications() ([]models.FinancingApplication, error)

	// Appointments
	CreateAppointment(a *models.Appointment) error
	ListAppointmentsBetween(from, to time.Time) ([]models.Appointment, error)

	// Developments and analytics
	ListDevelopments() ([]models.Development, error)
	RecordAbandonment(rec *models.AbandonmentRecord) error
	ListAbandonments(leadID string) ([]models.AbandonmentRecord, error)
}

// InMemoryStore is a map-backed Store used in tests and local runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	leads        map[string]models.Lead
	staff        map[string]models.StaffMember
	staffOrder   []string
	applications map[string]models.FinancingApplication // keyed by lead ID
	appointments []models.Appointment
	developments []models.Development
	abandonments []models.AbandonmentRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads:        make(map[string]models.Lead),
		staff:        make(map[string]models.StaffMember),
		applications: make(map[string]models.FinancingApplication),
	}
}

func (s *InMemoryStore) GetLead(id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leads[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leads {
		if l.Phone == phone {
			lead := l
			return &lead, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveLead(lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.UpdatedAt = time.Now()
	s.leads[lead.ID] = *lead
	return nil
}

func (s *InMemoryStore) UpdateLeadContext(leadID string, blob models.ContextBlob, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return models.ErrLeadNotFound
	}
	if lead.Context.Version != expectedVersion {
		return models.ErrContextConflict
	}
	blob.Version = expectedVersion + 1
	lead.Context = blob
	lead.UpdatedAt = time.Now()
	s.leads[leadID] = lead
	return nil
}

func (s *InMemoryStore) ListLeadsInCreditFlow() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.Context.CreditFlow.Active() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) GetStaffMember(id string) (*models.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.staff[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetStaffByPhone(phone string) (*models.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.staffOrder {
		if m := s.staff[id]; m.Phone == phone {
			member := m
			return &member, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListActiveStaff(role models.StaffRole) ([]models.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StaffMember
	for _, id := range s.staffOrder {
		m := s.staff[id]
		if m.Active && (role == "" || m.Role == role) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveStaffMember(m *models.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.staff[m.ID]; !exists {
		s.staffOrder = append(s.staffOrder, m.ID)
	}
	s.staff[m.ID] = *m
	return nil
}

func (s *InMemoryStore) UpdateStaffContext(staffID string, blob models.ContextBlob, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[staffID]
	if !ok {
		return models.ErrStaffNotFound
	}
	if m.Context.Version != expectedVersion {
		return models.ErrContextConflict
	}
	blob.Version = expectedVersion + 1
	m.Context = blob
	s.staff[staffID] = m
	return nil
}

func (s *InMemoryStore) UpsertFinancingApplication(app *models.FinancingApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.applications[app.LeadID]; ok {
		app.ID = existing.ID
		app.CreatedAt = existing.CreatedAt
	} else if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	s.applications[app.LeadID] = *app
	return nil
}

func (s *InMemoryStore) GetApplicationByLead(leadID string) (*models.FinancingApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.applications[leadID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s *InMemoryStore) CountOpenApplications(staffID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.applications {
		if a.AdvisorID != staffID {
			continue
		}
		for _, st := range models.OpenApplicationStatuses {
			if a.Status == st {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListApplications() ([]models.FinancingApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FinancingApplication, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CreateAppointment(a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.appointments = append(s.appointments, *a)
	return nil
}

func (s *InMemoryStore) ListAppointmentsBetween(from, to time.Time) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if !a.When.Before(from) && a.When.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListDevelopments() ([]models.Development, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Development, len(s.developments))
	copy(out, s.developments)
	return out, nil
}

// AddDevelopment seeds a development (tests and local runs).
func (s *InMemoryStore) AddDevelopment(d models.Development) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.developments = append(s.developments, d)
}

func (s *InMemoryStore) RecordAbandonment(rec *models.AbandonmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	s.abandonments = append(s.abandonments, *rec)
	return nil
}

func (s *InMemoryStore) ListAbandonments(leadID string) ([]models.AbandonmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AbandonmentRecord
	for _, r := range s.abandonments {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}
