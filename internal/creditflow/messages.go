package creditflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/finance"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
	"github.com/CasaLindaMX/LeadFlow/internal/util"
)

// Canned Spanish replies for each flow state. The tone follows the
// WhatsApp sales conversation: short lines, emoji markers, one question
// per message.

func msgAskName() string {
	return "¡Con gusto te ayudo con tu crédito! 🏠\n\n¿Me compartes tu nombre para personalizar tu atención?"
}

func msgAskNameRetry() string {
	return "Disculpa, no logré captar tu nombre 😅\n\n¿Me lo compartes de nuevo? Por ejemplo: \"Me llamo Ana Torres\""
}

func msgAskLender(name string) string {
	return fmt.Sprintf("¡Mucho gusto, %s! 🙌\n\n¿Con qué banco o institución te gustaría tramitar tu crédito?\n\nPor ejemplo: BBVA, Banorte, HSBC, Infonavit... Si no tienes uno en mente, dime \"no sé\" y te recomendamos opciones.", name)
}

func msgAskLenderRetry() string {
	return "¿Con qué banco te gustaría tramitar tu crédito? 🏦\n\nSi aún no lo decides, escribe \"no sé\" y nosotros te recomendamos."
}

func msgOfferSimulation(lender string) string {
	intro := "¡Perfecto! 📋"
	if lender != "" && lender != "Por definir" {
		intro = fmt.Sprintf("¡Perfecto, %s es una gran opción! 📋", lender)
	}
	return intro + "\n\n¿Te gustaría que te haga una *simulación de crédito* para saber cuánto te pueden prestar?\n\n1️⃣ Sí, simular mi crédito\n2️⃣ No, prefiero hablar con un asesor"
}

func msgOfferSimulationRetry() string {
	return "¿Te hago una simulación de crédito? 😊\n\n1️⃣ Sí, simular\n2️⃣ No, hablar con un asesor"
}

func msgAskIncome() string {
	return "¡Excelente! Vamos a simular tu crédito 🧮\n\n¿Cuál es tu *ingreso mensual* aproximado?\n\nPor ejemplo: \"25 mil\" o \"$25,000\""
}

func msgAskIncomeRetry() string {
	return "No logré identificar la cantidad 😅\n\n¿Me dices tu ingreso mensual aproximado? Por ejemplo: \"25 mil\""
}

func msgIncomeBelowMinimum() string {
	return fmt.Sprintf("Para una simulación de crédito hipotecario necesitamos un ingreso mensual de al menos $%s 😔\n\nSi tu ingreso familiar combinado supera esa cantidad, compártemelo y lo simulamos juntos.", util.FormatAmount(finance.MinMonthlyIncome))
}

func msgAskDownPayment() string {
	return "¡Muy bien! 💪\n\n¿Cuentas con algún *enganche* o ahorro inicial?\n\nSi no tienes, no te preocupes: escribe \"no tengo\" y seguimos."
}

func msgAskDownPaymentRetry() string {
	return "¿Cuánto tienes de enganche o ahorro inicial? 💰\n\nSi no cuentas con enganche, escribe \"no tengo\"."
}

// msgSimulation formats the lender comparison plus the modality question
// that follows it in the same turn.
func msgSimulation(opts []finance.Option, capacity finance.Capacity) string {
	var b strings.Builder
	b.WriteString("🎉 *¡Estos son tus resultados!*\n\n")
	for i, o := range opts {
		marker := fmt.Sprintf("%d.", i+1)
		if o.Preferred {
			marker = "⭐"
		}
		fmt.Fprintf(&b, "%s *%s* (%d años)\n   Préstamo hasta: $%s\n   Casa de hasta: $%s\n   Pago mensual: $%s\n\n",
			marker, o.Lender, o.TermYears,
			util.FormatAmount(o.Principal), util.FormatAmount(o.TotalPrice), util.FormatAmount(o.MonthlyPayment))
	}
	fmt.Fprintf(&b, "💡 Con tu perfil puedes aspirar a una casa de hasta *$%s*\n\n", util.FormatAmount(capacity.MaxTotal))
	b.WriteString("¿Cómo prefieres que un asesor te contacte para continuar?\n\n1️⃣ Llamada telefónica\n2️⃣ Mensaje por WhatsApp\n3️⃣ Visita presencial a nuestras oficinas")
	return b.String()
}

func msgAskModality() string {
	return "¿Cómo prefieres que un asesor te contacte? 😊\n\n1️⃣ Llamada telefónica\n2️⃣ Mensaje por WhatsApp\n3️⃣ Visita presencial"
}

func msgAskModalityRetry() string {
	return "Solo responde con el número de tu preferencia 🙏\n\n1️⃣ Llamada\n2️⃣ WhatsApp\n3️⃣ Visita presencial"
}

// msgDevelopments lists up to three developments the lead can afford and
// asks for a visit day/time.
func msgDevelopments(devs []models.Development) string {
	var b strings.Builder
	b.WriteString("🏘️ Estas opciones se ajustan a tu presupuesto:\n\n")
	for _, d := range devs {
		fmt.Fprintf(&b, "🏠 *%s* — desde $%s\n", d.Name, util.FormatAmount(d.Price))
	}
	b.WriteString("\n¿Qué día y a qué hora te gustaría visitarnos? 📅\n\nAtendemos lunes a viernes de 9:00 a 18:00 y sábados de 9:00 a 14:00.")
	return b.String()
}

// msgDevelopmentsFallback is shown when no development fits the budget.
func msgDevelopmentsFallback() string {
	return "🏘️ Tenemos varios desarrollos con opciones para ti:\n\n🏠 *Residencial Los Encinos*\n🏠 *Privada Las Palmas*\n\n¿Qué día y a qué hora te gustaría visitarnos? 📅\n\nAtendemos lunes a viernes de 9:00 a 18:00 y sábados de 9:00 a 14:00."
}

func msgAdvisorAssigned(advisorName string, modality models.ContactModality) string {
	via := "por WhatsApp"
	if modality == models.ModalityPhone {
		via = "por llamada"
	}
	return fmt.Sprintf("¡Listo! 🎉 Tu asesor *%s* te contactará %s muy pronto.\n\nMientras tanto, ¿te gustaría agendar una visita para conocer las casas en persona?", advisorName, via)
}

func msgAdvisorPendingAssignment() string {
	return "¡Listo! 🎉 Un asesor de crédito te contactará muy pronto.\n\nMientras tanto, ¿te gustaría agendar una visita para conocer las casas en persona?"
}

func msgAskVisitTime() string {
	return "¡Perfecto! ¿A qué hora te queda bien? ⏰\n\nAtendemos de 9:00 a 18:00 entre semana y de 9:00 a 14:00 los sábados."
}

func msgAskVisitDate() string {
	return "¡Perfecto! ¿Qué día te gustaría venir? 📅\n\nAtendemos lunes a sábado."
}

func msgVisitDateTimeRetry() string {
	return "¿Qué día y a qué hora te gustaría visitarnos? 📅\n\nPor ejemplo: \"mañana a las 11\" o \"el sábado a las 10\"."
}

// msgOutOfHours re-prompts with the correct closing time for the
// requested weekday.
func msgOutOfHours(w time.Weekday) string {
	if closingHour(w) == 0 {
		return "Los domingos descansamos 😅\n\n¿Te queda bien otro día? Atendemos lunes a viernes de 9:00 a 18:00 y sábados de 9:00 a 14:00."
	}
	return fmt.Sprintf("Ese horario está fuera de nuestra atención 😅\n\nEse día atendemos de 9:00 a %d:00. ¿A qué hora dentro de ese horario te queda bien?", closingHour(w))
}

// msgAppointmentConfirmed confirms the scheduled visit.
func msgAppointmentConfirmed(when time.Time, development string) string {
	days := [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	place := "nuestras oficinas"
	if development != "" {
		place = development
	}
	return fmt.Sprintf("¡Agendado! ✅\n\n📅 %s %d a las %d:%02d\n📍 Te esperamos en %s.\n\nUn día antes te enviamos un recordatorio. ¡Gracias! 🏠",
		days[when.Weekday()], when.Day(), when.Hour(), when.Minute(), place)
}
