package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"invoicetrack/internal/transport/websocket"
)

func (h *Handler) startExport(w http.ResponseWriter, r *http.Request) {
	st, err := h.exports.StartExport(r.Context(), chi.URLParam(r, "export"), operator(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	SuccessAccepted(w, "export queued", map[string]any{
		"export_id": st.Key,
	})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	exports, err := h.exports.ListExports(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	st, err := h.exports.GetExport(r.Context(), chi.URLParam(r, "export"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", st)
}

var topics = map[string]bool{
	websocket.TopicInvoices:  true,
	websocket.TopicReports:   true,
	websocket.TopicReminders: true,
	websocket.TopicExports:   true,
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if !topics[topic] {
		ErrorBadRequest(w, "topic must be one of invoices, reports, reminders, exports")
		return
	}
	if h.hub == nil {
		ErrorNotFound(w, "websocket not available")
		return
	}
	h.hub.HandleWebSocket(w, r, topic)
}
