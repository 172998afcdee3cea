package rest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/repository"
	"invoicetrack/internal/service"
)

type InvoiceService interface {
	Create(invoiceNo string) (*domain.Invoice, error)
	SaveDraft(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	Complete(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	EditDraft(ctx context.Context, invoiceNo string, edit func(*domain.Invoice) error) (*domain.Invoice, error)
	EditAndComplete(ctx context.Context, invoiceNo string, edit func(*domain.Invoice) error) (*domain.Invoice, error)
	LoadForEdit(ctx context.Context, invoiceNo string) (*domain.Invoice, error)
	Get(ctx context.Context, invoiceNo string) (*domain.Invoice, error)
	List(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error)
	Delete(ctx context.Context, invoiceNo string) error
	UpdateFields(ctx context.Context, invoiceNo string, fields map[string]string) (*domain.Invoice, error)
	SetWeights(ctx context.Context, invoiceNo string, in service.WeightsInput) (*domain.Invoice, error)
	AttachDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (*domain.Invoice, error)
	OpenDocument(ctx context.Context, invoiceNo, kind string) (io.ReadCloser, domain.Attachment, error)
	Extract(ctx context.Context, invoiceNo string) (*domain.Invoice, []string, error)
}

type PaymentService interface {
	RecordPayment(ctx context.Context, invoiceNo string, in service.PaymentInput) (*domain.Invoice, domain.PaymentEntry, error)
	ListLedgers(ctx context.Context) ([]domain.Invoice, error)
	Summary(ctx context.Context) (domain.LedgerSummary, error)
}

type ScanService interface {
	Scan(ctx context.Context) (domain.Report, error)
}

type ReminderService interface {
	Candidate(ctx context.Context, invoiceNo string) (domain.ReminderCandidate, error)
	Dispatch(ctx context.Context, c domain.ReminderCandidate, in service.DispatchInput) (service.DispatchResult, error)
}

type ExportService interface {
	StartExport(ctx context.Context, kind, requestedBy string) (service.ExportStatus, error)
	GetExport(ctx context.Context, id string) (service.ExportStatus, error)
	ListExports(ctx context.Context) ([]service.ExportStatus, error)
}

// Subscriber attaches a websocket connection to a topic.
type Subscriber interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, topic string)
}

type Handler struct {
	invoices  InvoiceService
	payments  PaymentService
	scans     ScanService
	reminders ReminderService
	exports   ExportService
	hub       Subscriber
}

func NewHandler(invoices InvoiceService, payments PaymentService, scans ScanService, reminders ReminderService, exports ExportService, hub Subscriber) *Handler {
	return &Handler{
		invoices:  invoices,
		payments:  payments,
		scans:     scans,
		reminders: reminders,
		exports:   exports,
		hub:       hub,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Get("/ws", h.subscribe)
	r.Get("/variance", h.computeVariance)

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Route("/{invoice_no}", func(r chi.Router) {
			r.Get("/", h.getInvoice)
			r.Patch("/", h.updateFields)
			r.Delete("/", h.deleteInvoice)
			r.Get("/edit", h.loadForEdit)
			r.Post("/draft", h.saveDraft)
			r.Post("/complete", h.completeInvoice)
			r.Put("/weights", h.setWeights)
			r.Post("/documents/{kind}", h.attachDocument)
			r.Get("/documents/{kind}", h.openDocument)
			r.Post("/extract", h.extract)
			r.Post("/payments", h.recordPayment)
			r.Post("/reminders", h.sendReminder)
		})
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listLedgers)
		r.Get("/summary", h.paymentSummary)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/overdue", h.overdueReport)
		r.Get("/reminders", h.reminderReport)
	})

	r.Route("/exports", func(r chi.Router) {
		r.Get("/", h.listExports)
		// GET takes an export id, POST an export kind.
		r.Get("/{export}", h.getExport)
		r.Post("/{export}", h.startExport)
	})

	return r
}
