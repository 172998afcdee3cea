package rest

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/repository"
)

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatusParam(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.invoices.List(r.Context(), repository.InvoiceFilter{
		Status: status,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows := make([]invoiceSummaryView, 0, len(invoices))
	for i := range invoices {
		rows = append(rows, newInvoiceSummaryView(&invoices[i]))
	}
	Success(w, "", rows)
}

// createInvoice starts a new invoice and saves it straight away, as a draft
// unless the body asks for completion.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.invoices.Create(req.InvoiceNo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.apply(inv); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Complete {
		inv, err = h.invoices.Complete(r.Context(), inv)
	} else {
		inv, err = h.invoices.SaveDraft(r.Context(), inv)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	SuccessCreated(w, "invoice saved", newInvoiceView(inv))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "invoice_no"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", newInvoiceView(inv))
}

func (h *Handler) loadForEdit(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.LoadForEdit(r.Context(), chi.URLParam(r, "invoice_no"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", newInvoiceView(inv))
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	h.saveExisting(w, r, false)
}

func (h *Handler) completeInvoice(w http.ResponseWriter, r *http.Request) {
	h.saveExisting(w, r, true)
}

// saveExisting applies the form to the stored invoice inside the write lock,
// so edits committed since the client loaded the form are kept.
func (h *Handler) saveExisting(w http.ResponseWriter, r *http.Request, complete bool) {
	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		inv *domain.Invoice
		err error
	)
	msg := "draft saved"
	if complete {
		inv, err = h.invoices.EditAndComplete(r.Context(), chi.URLParam(r, "invoice_no"), req.apply)
		msg = "invoice completed"
	} else {
		inv, err = h.invoices.EditDraft(r.Context(), chi.URLParam(r, "invoice_no"), req.apply)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, msg, newInvoiceView(inv))
}

func (h *Handler) updateFields(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	if len(fields) == 0 {
		writeError(w, r, &ValidationError{Field: "fields", Message: "at least one field is required"})
		return
	}
	inv, err := h.invoices.UpdateFields(r.Context(), chi.URLParam(r, "invoice_no"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "invoice updated", newInvoiceView(inv))
}

func (h *Handler) setWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.invoices.SetWeights(r.Context(), chi.URLParam(r, "invoice_no"), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "", map[string]any{
		"invoice_no":     inv.InvoiceNo,
		"lr_weight":      inv.LRWeight,
		"site_weight":    inv.SiteWeight,
		"invoice_amount": inv.InvoiceAmount,
		"variance":       inv.Variance,
	})
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	no := chi.URLParam(r, "invoice_no")
	if err := h.invoices.Delete(r.Context(), no); err != nil {
		writeError(w, r, err)
		return
	}
	Success(w, "invoice deleted", map[string]string{"invoice_no": no})
}

func (h *Handler) attachDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, clients.MaxDocumentSizeBytes+1<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, &ValidationError{Field: "file", Message: "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &ValidationError{Field: "file", Message: "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, clients.MaxDocumentSizeBytes+1))
	if err != nil {
		writeError(w, r, &ValidationError{Field: "file", Message: "failed to read file"})
		return
	}
	if len(data) > clients.MaxDocumentSizeBytes {
		writeError(w, r, &ValidationError{Field: "file", Message: "file exceeds 20 MB"})
		return
	}

	inv, err := h.invoices.AttachDocument(r.Context(), chi.URLParam(r, "invoice_no"), chi.URLParam(r, "kind"), filepath.Base(header.Filename), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	SuccessCreated(w, "document attached", newInvoiceView(inv))
}

func (h *Handler) openDocument(w http.ResponseWriter, r *http.Request) {
	rc, a, err := h.invoices.OpenDocument(r.Context(), chi.URLParam(r, "invoice_no"), chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(a.Filename))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Filename))
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("file", a.Filename).Msg("stream document")
	}
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	inv, changed, err := h.invoices.Extract(r.Context(), chi.URLParam(r, "invoice_no"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	Success(w, fmt.Sprintf("%d fields extracted", len(changed)), map[string]any{
		"invoice":        newInvoiceView(inv),
		"updated_fields": changed,
	})
}

// computeVariance runs the calculator without touching any invoice.
func (h *Handler) computeVariance(w http.ResponseWriter, r *http.Request) {
	lr, err := parseDecimalParam(r, "lr_weight")
	if err != nil {
		writeError(w, r, err)
		return
	}
	site, err := parseDecimalParam(r, "site_weight")
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseDecimalParam(r, "invoice_amount")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, ok := domain.ComputeVariance(lr, site, amount)
	if !ok {
		Success(w, "both weights must be positive", map[string]any{"variance": nil})
		return
	}
	Success(w, "", map[string]any{"variance": res})
}
