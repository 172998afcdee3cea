package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/repository"
)

var testNow = time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func daysAgo(days int) string {
	return testNow.AddDate(0, 0, -days).Format(domain.DateLayout)
}

type memRepo struct {
	mu       sync.Mutex
	invoices map[string]*domain.Invoice
	getDelay time.Duration
	saves    int
}

func newMemRepo() *memRepo {
	return &memRepo{invoices: map[string]*domain.Invoice{}}
}

func (r *memRepo) Get(ctx context.Context, no string) (*domain.Invoice, error) {
	r.mu.Lock()
	inv, ok := r.invoices[no]
	r.mu.Unlock()
	if r.getDelay > 0 {
		time.Sleep(r.getDelay)
	}
	if !ok {
		return nil, domain.NewError("Get", domain.ErrNotFound, no)
	}
	return inv.Clone(), nil
}

func (r *memRepo) List(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range r.invoices {
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNo), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *inv.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNo < out[j].InvoiceNo })
	return out, nil
}

func (r *memRepo) Save(ctx context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.invoices[inv.InvoiceNo]; ok && cur.Version != inv.Version {
		return domain.NewError("Save", domain.ErrBusy, "changed since it was loaded")
	}
	inv.Version++
	r.invoices[inv.InvoiceNo] = inv.Clone()
	r.saves++
	return nil
}

func (r *memRepo) Delete(ctx context.Context, no string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[no]; !ok {
		return domain.NewError("Delete", domain.ErrNotFound, no)
	}
	delete(r.invoices, no)
	return nil
}

func (r *memRepo) ListLedgers(ctx context.Context) ([]domain.Invoice, error) {
	return r.List(ctx, repository.InvoiceFilter{})
}

type memDocs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemDocs() *memDocs {
	return &memDocs{objects: map[string][]byte{}}
}

func (d *memDocs) PutDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (string, error) {
	if d.putErr != nil {
		return "", d.putErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ref := invoiceNo + "/" + kind + "/" + fileName
	d.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (d *memDocs) OpenDocument(ctx context.Context, ref string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[ref]
	if !ok {
		return nil, clients.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *memDocs) DeleteDocument(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, ref)
	return nil
}

func (d *memDocs) has(ref string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.objects[ref]
	return ok
}

type fakeExtractor struct {
	fields     map[string]string
	confidence map[string]float32
	err        error
	got        []clients.ExtractInput
}

func (e *fakeExtractor) Extract(ctx context.Context, docs []clients.ExtractInput) (map[string]string, map[string]float32, error) {
	e.got = docs
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.fields, e.confidence, nil
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []domain.ReminderRequest
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, req domain.ReminderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

type memExportStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memExportStore) SaveExport(ctx context.Context, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[fileName] = data
	return "http://files.test/" + fileName, nil
}

type fixture struct {
	repo     *memRepo
	docs     *memDocs
	clock    *clock.FakeClock
	invoices *InvoiceService
	payments *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	docs := newMemDocs()
	clk := clock.NewFakeClock(testNow)
	locker := NewKeyedMutex()
	return &fixture{
		repo:     repo,
		docs:     docs,
		clock:    clk,
		invoices: NewInvoiceService(repo, docs, nil, locker, clk, nil, nil),
		payments: NewPaymentService(repo, locker, clk, nil, nil),
	}
}

// draft saves a PARTIAL invoice with an invoice date and amount.
func (f *fixture) draft(t *testing.T, no, invoiceDate, amount string) *domain.Invoice {
	t.Helper()
	inv, err := f.invoices.Create(no)
	require.NoError(t, err)
	if invoiceDate != "" {
		require.NoError(t, inv.SetField(domain.FieldInvoiceDate, invoiceDate))
	}
	require.NoError(t, inv.SetField(domain.FieldBuyerName, "Acme Traders"))
	require.NoError(t, inv.SetInvoiceAmount(dec(amount)))
	saved, err := f.invoices.SaveDraft(context.Background(), inv)
	require.NoError(t, err)
	return saved
}
