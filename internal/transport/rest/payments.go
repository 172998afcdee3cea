package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"invoicetrack/internal/transport/auth"
)

func operator(r *http.Request) string {
	op, err := auth.GetOperator(r.Context())
	if err != nil {
		return "anonymous"
	}
	return op
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	in, err := ValidatePaymentRequest(r, operator(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, entry, err := h.payments.RecordPayment(r.Context(), chi.URLParam(r, "invoice_no"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	SuccessCreated(w, "payment recorded", map[string]any{
		"payment": entry,
		"ledger":  newLedgerView(inv),
	})
}

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.payments.ListLedgers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := make([]ledgerView, 0, len(invoices))
	for i := range invoices {
		rows = append(rows, newLedgerView(&invoices[i]))
	}
	Success(w, "", rows)
}

func (h *Handler) paymentSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.payments.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", sum)
}
