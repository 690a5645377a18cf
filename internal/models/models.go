// Package models defines the core data structures for LeadFlow.
//
// It includes leads, staff members, appointments, financing applications
// and the per-lead context blob shared across modules.
package models

import (
	"errors"
	"time"
)

// LeadStatus tracks a lead's position in the sales funnel.
type LeadStatus string

const (
	// LeadStatusNew indicates a lead that has not been contacted yet.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusContacted indicates at least one outbound touch.
	LeadStatusContacted LeadStatus = "contacted"
	// LeadStatusCreditFlow indicates the lead is inside the credit qualification flow.
	LeadStatusCreditFlow LeadStatus = "credit_flow"
	// LeadStatusCreditQualified indicates the lead completed qualification.
	LeadStatusCreditQualified LeadStatus = "credit_qualified"
	// LeadStatusLost indicates the lead abandoned the funnel.
	LeadStatusLost LeadStatus = "lost"
)

// Error variables shared across modules.
var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrStaffNotFound     = errors.New("staff member not found")
	ErrEmptyPhone        = errors.New("phone cannot be empty")
	ErrNoActiveContext   = errors.New("no active credit flow context")
	ErrContextConflict   = errors.New("context blob version conflict")
	ErrMalformedContext  = errors.New("malformed context blob")
	ErrNoAdvisorSelected = errors.New("no advisor could be selected")
)

// Lead represents a prospect tracked through the sales funnel.
type Lead struct {
	ID               string      `json:"id"`
	Phone            string      `json:"phone"`
	Name             string      `json:"name,omitempty"`
	Status           LeadStatus  `json:"status"`
	AssignedTo       string      `json:"assigned_to,omitempty"`       // current primary contact (salesperson or advisor)
	PreviousAssignee string      `json:"previous_assignee,omitempty"` // salesperson preserved across escalation
	PropertyInterest string      `json:"property_interest,omitempty"`
	MonthlyIncome    int64       `json:"monthly_income,omitempty"`
	DownPayment      int64       `json:"down_payment,omitempty"`
	PreferredLender  string      `json:"preferred_lender,omitempty"`
	CreditCapacity   int64       `json:"credit_capacity,omitempty"` // derived, never hand-set
	Context          ContextBlob `json:"context,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// HasRealName reports whether the lead's name looks like an actual person
// rather than a placeholder or a phone number copied into the name field.
func (l *Lead) HasRealName() bool {
	switch l.Name {
	case "", "Sin nombre", "Cliente", "Cliente WhatsApp":
		return false
	}
	for _, r := range l.Name {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}

// StaffRole distinguishes salespeople from credit advisors.
type StaffRole string

const (
	// RoleSalesperson handles showings and general lead contact.
	RoleSalesperson StaffRole = "salesperson"
	// RoleCreditAdvisor handles mortgage/credit qualification.
	RoleCreditAdvisor StaffRole = "credit_advisor"
)

// StaffMember represents a team member who can own leads or applications.
type StaffMember struct {
	ID              string      `json:"id"`
	Phone           string      `json:"phone"`
	Name            string      `json:"name"`
	Role            StaffRole   `json:"role"`
	Active          bool        `json:"active"`
	LenderSpecialty string      `json:"lender_specialty,omitempty"` // advisors only
	Context         ContextBlob `json:"context,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// AppointmentStatus is the lifecycle of a scheduled visit.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusDone      AppointmentStatus = "done"
)

// Appointment represents a scheduled site visit. AssignedTo is always the
// original salesperson, not the credit advisor, so reminder jobs keep
// reaching the person who will actually show the property.
type Appointment struct {
	ID          string            `json:"id"`
	LeadID      string            `json:"lead_id"`
	When        time.Time         `json:"when"`
	Development string            `json:"development,omitempty"`
	Status      AppointmentStatus `json:"status"`
	AssignedTo  string            `json:"assigned_to"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ApplicationStatus is the independent lifecycle of a financing application.
// It outlives the credit flow context that created it.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// OpenApplicationStatuses are the statuses that count toward an advisor's load.
var OpenApplicationStatuses = []ApplicationStatus{ApplicationStatusPending}

// FinancingApplication is created once, at escalation, one per lead.
type FinancingApplication struct {
	ID              string            `json:"id"`
	LeadID          string            `json:"lead_id"`
	AdvisorID       string            `json:"advisor_id,omitempty"`
	Lender          string            `json:"lender,omitempty"`
	MonthlyIncome   int64             `json:"monthly_income,omitempty"`
	DownPayment     int64             `json:"down_payment,omitempty"`
	RequestedAmount int64             `json:"requested_amount,omitempty"`
	Status          ApplicationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Development is a housing development used for budget filtering.
type Development struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// AbandonmentRecord captures where and why a lead left the credit flow.
type AbandonmentRecord struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	State      string    `json:"state"`
	Reason     string    `json:"reason"`
	Lender     string    `json:"lender,omitempty"`
	Income     int64     `json:"income,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Response represents an incoming message from a lead or staff member.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Receipt represents a delivery status event for an outbound message.
type Receipt struct {
	To     string `json:"to"`
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

// Receipt statuses reported by the messaging transports.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)
