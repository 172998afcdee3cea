package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"invoicetrack/internal/domain"
)

type reminderGroup struct {
	Tier       domain.Tier             `json:"tier"`
	Candidates []reminderCandidateView `json:"candidates"`
}

type reminderCandidateView struct {
	domain.ReminderCandidate
	Message string `json:"default_message"`
}

// overdueReport runs a fresh scan so the listing is never staler than the request.
func (h *Handler) overdueReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.scans.Scan(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", map[string]any{
		"generated_at": formatTime(report.GeneratedAt),
		"overdue":      report.Overdue,
	})
}

func (h *Handler) reminderReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.scans.Scan(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	byTier := report.ByTier()
	groups := make([]reminderGroup, 0, 3)
	for _, tier := range []domain.Tier{domain.TierCritical, domain.TierHigh, domain.TierStandard} {
		g := reminderGroup{Tier: tier, Candidates: []reminderCandidateView{}}
		for _, c := range byTier[tier] {
			g.Candidates = append(g.Candidates, reminderCandidateView{ReminderCandidate: c, Message: domain.DefaultReminderMessage(c)})
		}
		groups = append(groups, g)
	}
	Success(w, "", map[string]any{
		"generated_at": formatTime(report.GeneratedAt),
		"tiers":        groups,
	})
}

func (h *Handler) sendReminder(w http.ResponseWriter, r *http.Request) {
	in, useDefault, err := ValidateReminderRequest(r, operator(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.reminders.Candidate(r.Context(), chi.URLParam(r, "invoice_no"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if useDefault {
		in.Message = domain.DefaultReminderMessage(c)
	}

	res, err := h.reminders.Dispatch(r.Context(), c, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "reminder sent"
	if res.Outcome != "sent" {
		msg = "reminder queued"
	}
	Success(w, msg, res)
}
