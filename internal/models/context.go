// Package models defines the context blob envelope shared by the
// session store and the pending-action dispatcher.
package models

import (
	"encoding/json"
	"time"
)

// SlotName identifies a pending-action slot inside a context blob.
type SlotName string

// Slot names in strict dispatch priority order (highest first).
const (
	SlotBridgeSession     SlotName = "bridge_session"
	SlotLeadSelection     SlotName = "lead_selection"
	SlotMessageRelay      SlotName = "message_relay"
	SlotBirthdayResponse  SlotName = "birthday_response"
	SlotVisitConfirmation SlotName = "visit_confirmation"
	SlotEventRSVP         SlotName = "event_rsvp"
	SlotAppointmentAction SlotName = "appointment_action"
	SlotCreditFlow        SlotName = "credit_flow"
	SlotAutoResponse      SlotName = "auto_response"
	SlotBroadcastReply    SlotName = "broadcast_reply"
)

// PendingSlot is a named, time-boxed marker meaning "this entity's next
// message is a reply to X". A slot is live while now - SentAt < maxAge
// for its type; an expired slot becomes invisible but is not eagerly
// deleted.
type PendingSlot struct {
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Live reports whether the slot is still within its allowed age.
func (s *PendingSlot) Live(now time.Time, maxAge time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.SentAt) < maxAge
}

// ContextBlob is the versioned envelope persisted per entity. Version is
// an optimistic-concurrency token: every write bumps it and the store
// rejects writes against a stale version.
type ContextBlob struct {
	Version    int                       `json:"version"`
	Slots      map[SlotName]*PendingSlot `json:"slots,omitempty"`
	CreditFlow *CreditFlowContext        `json:"credit_flow_context,omitempty"`
}

// Slot returns the named pending slot, or nil.
func (b *ContextBlob) Slot(name SlotName) *PendingSlot {
	if b == nil || b.Slots == nil {
		return nil
	}
	return b.Slots[name]
}

// SetSlot writes (or overwrites) a pending slot.
func (b *ContextBlob) SetSlot(name SlotName, slot *PendingSlot) {
	if b.Slots == nil {
		b.Slots = make(map[SlotName]*PendingSlot)
	}
	b.Slots[name] = slot
}

// ClearSlot removes a pending slot.
func (b *ContextBlob) ClearSlot(name SlotName) {
	if b.Slots != nil {
		delete(b.Slots, name)
	}
}

// FlowState is the credit qualification FSM state. Exactly one value at
// a time; absence of a CreditFlowContext means "not in flow".
type FlowState string

const (
	StateAskName           FlowState = "pedir_nombre"
	StateAwaitLender       FlowState = "esperando_banco"
	StateOfferSimulation   FlowState = "ofrecer_simulacion"
	StateAwaitIncome       FlowState = "esperando_ingreso"
	StateAwaitDownPayment  FlowState = "esperando_enganche"
	StateShowSimulation    FlowState = "mostrar_simulacion"
	StateAwaitModality     FlowState = "esperando_modalidad"
	StateAwaitVisit        FlowState = "esperando_cita_presencial"
	StateConnectingAdvisor FlowState = "conectando_asesor"
	StateCompleted         FlowState = "completado"
)

// IsValidFlowState checks whether s is a defined state value.
func IsValidFlowState(s FlowState) bool {
	switch s {
	case StateAskName, StateAwaitLender, StateOfferSimulation,
		StateAwaitIncome, StateAwaitDownPayment, StateShowSimulation,
		StateAwaitModality, StateAwaitVisit, StateConnectingAdvisor,
		StateCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is an idempotent no-op endpoint.
func (s FlowState) IsTerminal() bool {
	return s == StateCompleted || s == StateConnectingAdvisor
}

// ContactModality is how the lead wants the advisor to reach them.
type ContactModality string

const (
	ModalityPhone    ContactModality = "llamada"
	ModalityChat     ContactModality = "whatsapp"
	ModalityInPerson ContactModality = "presencial"
)

// CreditFlowContext is the persisted FSM context. At most one active
// context per lead; it is cleared on completion, cancellation or expiry.
type CreditFlowContext struct {
	State           FlowState       `json:"state"`
	LeadName        string          `json:"lead_name,omitempty"`
	Lender          string          `json:"lender,omitempty"`
	MonthlyIncome   int64           `json:"monthly_income,omitempty"`
	DownPayment     *int64          `json:"down_payment,omitempty"` // pointer: explicit 0 is a valid answer
	Capacity        int64           `json:"capacity,omitempty"`     // derived, recomputed on income/down-payment change
	Modality        ContactModality `json:"modality,omitempty"`
	AdvisorID       string          `json:"advisor_id,omitempty"`
	AdvisorName     string          `json:"advisor_name,omitempty"`
	AdvisorPhone    string          `json:"advisor_phone,omitempty"`
	OriginalStaffID string          `json:"original_staff_id,omitempty"`
	Development     string          `json:"development,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Active reports whether the context still owns incoming messages.
func (c *CreditFlowContext) Active() bool {
	return c != nil && !c.State.IsTerminal()
}
