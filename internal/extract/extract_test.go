package extract

import (
	"testing"
	"time"
)

func TestName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"me llamo Roberto García", "Roberto García", true},
		{"soy Juan Pérez", "Juan Pérez", true},
		{"mi nombre es Ana", "Ana", true},
		{"hola, me llamo Ana Torres", "Ana Torres", true},
		{"roberto garcia", "Roberto Garcia", true},
		{"Roberto!", "Roberto", true},
		{"12345", "", false},
		{"a", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Name(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Name(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"gano 25mil", 25000, true},
		{"gano 25k al mes", 25000, true},
		{"$25,000 pesos", 25000, true},
		{"gano 25", 25000, true},
		{"gano 35000 al mes", 35000, true},
		{"2m", 2000000, true},
		{"no se cuanto gano", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := Amount(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Amount(%q) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

// Digit-only strings below 1000 always mean thousands.
func TestAmountSmallValuesMeanThousands(t *testing.T) {
	for _, in := range []string{"1", "25", "150", "999"} {
		got, ok := Amount(in)
		if !ok {
			t.Fatalf("Amount(%q) unexpectedly missed", in)
		}
		want, _ := Amount(in + "000")
		if got != want {
			t.Errorf("Amount(%q) = %d; want %d", in, got, want)
		}
	}
}

func TestLender(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"quiero por bbva", "BBVA", true},
		{"bancomer", "BBVA", true},
		{"mi cuenta es en banorte", "Banorte", true},
		{"tengo infonavit", "Infonavit", true},
		{"soy de fovissste", "Fovissste", true},
		{"scotia", "Scotiabank", true},
		{"no se cual es mejor", LenderUnspecified, true},
		{"no sé", LenderUnspecified, true},
		{"recomiendame uno", LenderUnspecified, true},
		{"hola", "", false},
	}
	for _, c := range cases {
		got, ok := Lender(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Lender(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

// Re-running detection on canonical output must return the same value.
func TestLenderIdempotent(t *testing.T) {
	inputs := []string{"bbva", "bancomer", "banorte", "scotia", "infonavit", "no sé"}
	for _, in := range inputs {
		first, ok := Lender(in)
		if !ok {
			t.Fatalf("Lender(%q) missed", in)
		}
		second, ok := Lender(first)
		if !ok || second != first {
			t.Errorf("Lender(%q) = %q, %v; not idempotent (first %q)", first, second, ok, first)
		}
	}
}

func TestModality(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1", "llamada", true},
		{"prefiero llamada", "llamada", true},
		{"2", "whatsapp", true},
		{"por whatsapp porfavor", "whatsapp", true},
		{"3", "presencial", true},
		{"en la oficina", "presencial", true},
		{"no se", "", false},
	}
	for _, c := range cases {
		got, ok := Modality(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Modality(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAlreadyQualified(t *testing.T) {
	positive := []string{
		"ya tengo credito aprobado",
		"ya tengo crédito",
		"me aprobaron el credito",
		"ya twngo credito",
		"no necesito crédito",
		"mi credito esta en proceso",
		"soloespero mi credito",
		"solo espero mi credito",
	}
	for _, in := range positive {
		if !AlreadyQualified(in) {
			t.Errorf("AlreadyQualified(%q) = false; want true", in)
		}
	}
	negative := []string{"quiero un credito nuevo", "", "hola"}
	for _, in := range negative {
		if AlreadyQualified(in) {
			t.Errorf("AlreadyQualified(%q) = true; want false", in)
		}
	}
}

func TestCreditIntent(t *testing.T) {
	positive := []string{
		"necesito un credito",
		"quiero una hipoteca",
		"acepto infonavit",
		"soy de fovissste",
		"necesito financiamiento",
	}
	for _, in := range positive {
		if !CreditIntent(in) {
			t.Errorf("CreditIntent(%q) = false; want true", in)
		}
	}
	negative := []string{
		"ya estoy tramitando mi credito",
		"espero aprobacion de mi credito",
		"ya me aprobaron el credito",
		"mi credito esta en proceso",
		"solo espero mi credito",
		"hola quiero ver casas",
	}
	for _, in := range negative {
		if CreditIntent(in) {
			t.Errorf("CreditIntent(%q) = true; want false", in)
		}
	}
}

func TestOffTopic(t *testing.T) {
	positive := []string{
		"cuanto cuesta la casa",
		"donde queda el desarrollo",
		"quiero ver las casas",
		"me mandan fotos del desarrollo",
		"en donde puedo encontrar mas informacion sobre todo esto?",
		"ya tengo credito aprobado",
	}
	for _, in := range positive {
		if !OffTopic(in) {
			t.Errorf("OffTopic(%q) = false; want true", in)
		}
	}
	negative := []string{"bbva", "25000", "no tengo", "si"}
	for _, in := range negative {
		if OffTopic(in) {
			t.Errorf("OffTopic(%q) = true; want false", in)
		}
	}
}

// Off-topic wins even when the text also names a lender.
func TestOffTopicBeatsLenderMention(t *testing.T) {
	in := "cuanto cuesta la casa? me dijeron que con bbva dan credito"
	if !OffTopic(in) {
		t.Fatalf("OffTopic(%q) = false; want true", in)
	}
	if _, ok := Lender(in); !ok {
		t.Fatalf("Lender should still match inside off-topic text")
	}
}

func TestParseVisitDateTime(t *testing.T) {
	// Wednesday 2026-03-04 12:00 local.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	t.Run("tomorrow with hour", func(t *testing.T) {
		v := ParseVisitDateTime("mañana a las 11", now)
		if !v.Complete() {
			t.Fatalf("expected complete, got %+v", v)
		}
		if v.Date.Day() != 5 || v.Hour != 11 {
			t.Errorf("got day %d hour %d; want 5, 11", v.Date.Day(), v.Hour)
		}
	})

	t.Run("weekday resolves forward", func(t *testing.T) {
		v := ParseVisitDateTime("el viernes a las 4", now)
		if !v.Complete() {
			t.Fatalf("expected complete, got %+v", v)
		}
		if v.Date.Weekday() != time.Friday {
			t.Errorf("got weekday %v; want Friday", v.Date.Weekday())
		}
		if v.Hour != 16 {
			t.Errorf("bare hour 4 should default to 16, got %d", v.Hour)
		}
	})

	t.Run("same weekday moves a week out", func(t *testing.T) {
		v := ParseVisitDateTime("el miercoles a las 10am", now)
		if !v.HasDate || !v.Date.After(now) {
			t.Fatalf("expected next Wednesday, got %+v", v)
		}
		if v.Hour != 10 {
			t.Errorf("10am should stay 10, got %d", v.Hour)
		}
	})

	t.Run("explicit pm", func(t *testing.T) {
		v := ParseVisitDateTime("hoy 3pm", now)
		if !v.Complete() || v.Hour != 15 {
			t.Fatalf("got %+v; want hour 15", v)
		}
	})

	t.Run("only time", func(t *testing.T) {
		v := ParseVisitDateTime("a las 5", now)
		if v.HasDate || !v.HasTime || v.Hour != 17 {
			t.Fatalf("got %+v; want time-only 17:00", v)
		}
	})

	t.Run("only date", func(t *testing.T) {
		v := ParseVisitDateTime("el sabado", now)
		if !v.HasDate || v.HasTime {
			t.Fatalf("got %+v; want date-only", v)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		v := ParseVisitDateTime("luego te digo", now)
		if v.HasDate || v.HasTime {
			t.Fatalf("got %+v; want empty", v)
		}
	})
}
