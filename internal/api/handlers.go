package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/creditflow"
	"github.com/CasaLindaMX/LeadFlow/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

type startFlowRequest struct {
	Phone string `json:"phone"`
}

// startFlowHandler opens a credit flow for an existing lead and sends
// them the first question.
func (s *Server) startFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req startFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	phone, err := s.svc.ValidateAndCanonicalizeRecipient(req.Phone)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	lead, err := s.store.GetLeadByPhone(phone)
	if err != nil {
		slog.Error("Server.startFlowHandler lead lookup failed", "error", err, "phone", phone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up lead"))
		return
	}
	if lead == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}

	res, err := s.engine.StartFlow(r.Context(), lead)
	if err != nil {
		slog.Error("Server.startFlowHandler StartFlow failed", "error", err, "leadID", lead.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start flow"))
		return
	}
	if res.Reply != "" {
		if err := s.svc.SendMessage(r.Context(), phone, res.Reply); err != nil {
			slog.Error("Server.startFlowHandler send failed", "error", err, "leadID", lead.ID)
		}
	}
	slog.Info("Server.startFlowHandler flow started", "leadID", lead.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"lead_id": lead.ID, "reply": res.Reply}))
}

type cancelFlowRequest struct {
	LeadID string `json:"lead_id"`
	Reason string `json:"reason,omitempty"`
}

// cancelFlowHandler abandons a lead's active flow. Idempotent: a lead
// without an active flow is still a 200.
func (s *Server) cancelFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.LeadID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("lead_id is required"))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = creditflow.ReasonManual
	}
	s.engine.Cancel(r.Context(), req.LeadID, reason)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow cancelled", nil))
}

type replyRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// replyHandler injects an inbound message into the router, the same
// path a live transport event takes.
func (s *Server) replyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.From == "" || req.Body == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("from and body are required"))
		return
	}

	s.router.HandleInbound(r.Context(), models.Response{
		From: req.From,
		Body: req.Body,
		Time: time.Now().Unix(),
	})
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message processed", nil))
}

// applicationsHandler lists financing applications.
func (s *Server) applicationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	apps, err := s.store.ListApplications()
	if err != nil {
		slog.Error("Server.applicationsHandler query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list applications"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(apps))
}

// appointmentsHandler lists appointments for one day (?date=2006-01-02,
// defaulting to today).
func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	day := time.Now()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.ParseInLocation("2006-01-02", q, time.Local)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid date, expected YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	appts, err := s.store.ListAppointmentsBetween(from, from.Add(24*time.Hour))
	if err != nil {
		slog.Error("Server.appointmentsHandler query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list appointments"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(appts))
}

// abandonmentsHandler lists a lead's flow abandonment records
// (?lead_id= required).
func (s *Server) abandonmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	leadID := r.URL.Query().Get("lead_id")
	if leadID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("lead_id is required"))
		return
	}
	recs, err := s.store.ListAbandonments(leadID)
	if err != nil {
		slog.Error("Server.abandonmentsHandler query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list abandonments"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}
