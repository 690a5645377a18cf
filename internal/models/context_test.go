package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPendingSlotLive(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	var nilSlot *PendingSlot
	if nilSlot.Live(now, time.Hour) {
		t.Error("nil slot must not be live")
	}

	fresh := &PendingSlot{SentAt: now.Add(-10 * time.Minute)}
	if !fresh.Live(now, time.Hour) {
		t.Error("slot within maxAge should be live")
	}

	expired := &PendingSlot{SentAt: now.Add(-2 * time.Hour)}
	if expired.Live(now, time.Hour) {
		t.Error("slot past maxAge should not be live")
	}
}

func TestContextBlobSlotOps(t *testing.T) {
	var b ContextBlob

	if b.Slot(SlotCreditFlow) != nil {
		t.Error("empty blob should have no slots")
	}

	b.SetSlot(SlotCreditFlow, &PendingSlot{SentAt: time.Now()})
	if b.Slot(SlotCreditFlow) == nil {
		t.Fatal("expected slot after SetSlot")
	}

	b.ClearSlot(SlotCreditFlow)
	if b.Slot(SlotCreditFlow) != nil {
		t.Error("expected slot removed after ClearSlot")
	}

	// Clearing a slot that was never set is a no-op.
	b.ClearSlot(SlotAutoResponse)
}

func TestCreditFlowContextActive(t *testing.T) {
	var nilCtx *CreditFlowContext
	if nilCtx.Active() {
		t.Error("nil context must not be active")
	}
	if !(&CreditFlowContext{State: StateAwaitIncome}).Active() {
		t.Error("mid-flow context should be active")
	}
	if (&CreditFlowContext{State: StateCompleted}).Active() {
		t.Error("completed context must not be active")
	}
	if (&CreditFlowContext{State: StateConnectingAdvisor}).Active() {
		t.Error("connecting_asesor is terminal")
	}
}

func TestHasRealName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Laura Méndez", true},
		{"", false},
		{"Sin nombre", false},
		{"Cliente", false},
		{"Cliente WhatsApp", false},
		{"5218115550101", false},
	}
	for _, c := range cases {
		l := Lead{Name: c.name}
		if got := l.HasRealName(); got != c.want {
			t.Errorf("HasRealName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDownPaymentZeroSurvivesRoundTrip(t *testing.T) {
	zero := int64(0)
	in := CreditFlowContext{State: StateAwaitModality, DownPayment: &zero}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out CreditFlowContext
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.DownPayment == nil {
		t.Fatal("explicit zero down payment must survive serialization")
	}
	if *out.DownPayment != 0 {
		t.Errorf("got %d, want 0", *out.DownPayment)
	}
}
