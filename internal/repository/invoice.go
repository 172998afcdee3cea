package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

type InvoiceFilter struct {
	Status *domain.InvoiceStatus
	// Search matches invoice numbers and buyer names, case-insensitively.
	Search string
}

type InvoiceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db, log: logger.WithComponent("invoice-repo")}
}

const invoiceColumns = `i.invoice_no, i.status, i.fields, i.documents, i.confidence, i.invoice_amount, i.lr_weight, i.site_weight, i.weight_difference, i.weight_loss_percentage, i.deduction_amount, i.final_bill_amount, i.variance_class, i.version, i.created_at, i.updated_at`

const paymentColumns = `p.id, p.invoice_no, p.amount, p.payment_date, p.payment_mode, p.reference_no, p.remarks, p.recorded_at, p.recorded_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *InvoiceRepository) scanInvoice(row rowScanner) (*domain.Invoice, domain.StoredVariance, error) {
	var (
		inv                           domain.Invoice
		status                        string
		fields, documents, confidence []byte
		stored                        domain.StoredVariance
	)
	if err := row.Scan(
		&inv.InvoiceNo,
		&status,
		&fields,
		&documents,
		&confidence,
		&inv.InvoiceAmount,
		&inv.LRWeight,
		&inv.SiteWeight,
		&stored.Difference,
		&stored.LossPct,
		&stored.Deduction,
		&stored.FinalAmount,
		&stored.Classification,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, stored, err
	}
	inv.Status = domain.InvoiceStatus(status)

	inv.Fields = map[string]string{}
	inv.Documents = domain.DocumentSet{}
	inv.Confidence = map[string]float32{}
	if err := json.Unmarshal(fields, &inv.Fields); err != nil {
		return nil, stored, fmt.Errorf("decode fields of %s: %w", inv.InvoiceNo, err)
	}
	if err := json.Unmarshal(documents, &inv.Documents); err != nil {
		return nil, stored, fmt.Errorf("decode documents of %s: %w", inv.InvoiceNo, err)
	}
	if err := json.Unmarshal(confidence, &inv.Confidence); err != nil {
		return nil, stored, fmt.Errorf("decode confidence of %s: %w", inv.InvoiceNo, err)
	}
	return &inv, stored, nil
}

// restore recomputes the derived fields. A stored set that disagrees with the
// weights is logged and replaced, never trusted.
func (r *InvoiceRepository) restore(inv *domain.Invoice, stored domain.StoredVariance) {
	if err := inv.RestoreVariance(stored); err != nil {
		r.log.Warn().Err(err).Str("invoice_no", inv.InvoiceNo).Msg("recomputed derived fields on load")
	}
}

func (r *InvoiceRepository) Get(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices i WHERE i.invoice_no = $1`, invoiceNo)
	inv, stored, err := r.scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError("Get", domain.ErrNotFound, invoiceNo)
	}
	if err != nil {
		return nil, err
	}

	payments, err := r.payments(ctx, []string{inv.InvoiceNo})
	if err != nil {
		return nil, err
	}
	inv.Payments = payments[inv.InvoiceNo]
	r.restore(inv, stored)
	return inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, f InvoiceFilter) ([]domain.Invoice, error) {
	base := `SELECT ` + invoiceColumns + ` FROM invoices i`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.Status != nil {
		where = append(where, fmt.Sprintf("i.status = $%d", i))
		args = append(args, string(*f.Status))
		i++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, fmt.Sprintf("(i.invoice_no ILIKE $%d OR i.fields->>'buyer_name' ILIKE $%d)", i, i))
		args = append(args, "%"+s+"%")
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY i.updated_at DESC, i.invoice_no"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out    []domain.Invoice
		stored []domain.StoredVariance
		nos    []string
	)
	for rows.Next() {
		inv, sv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
		stored = append(stored, sv)
		nos = append(nos, inv.InvoiceNo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	payments, err := r.payments(ctx, nos)
	if err != nil {
		return nil, err
	}
	for idx := range out {
		out[idx].Payments = payments[out[idx].InvoiceNo]
		r.restore(&out[idx], stored[idx])
	}
	return out, nil
}

// ListLedgers returns every invoice with its payments, highest balance due first.
func (r *InvoiceRepository) ListLedgers(ctx context.Context) ([]domain.Invoice, error) {
	out, err := r.List(ctx, InvoiceFilter{})
	if err != nil {
		return nil, err
	}
	domain.SortByBalanceDue(out)
	return out, nil
}

func (r *InvoiceRepository) payments(ctx context.Context, invoiceNos []string) (map[string][]domain.PaymentEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM invoice_payments p WHERE p.invoice_no = ANY($1) ORDER BY p.invoice_no, p.seq`,
		invoiceNos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.PaymentEntry, len(invoiceNos))
	for rows.Next() {
		var (
			p         domain.PaymentEntry
			invoiceNo string
			mode      string
		)
		if err := rows.Scan(
			&p.ID,
			&invoiceNo,
			&p.Amount,
			&p.PaymentDate,
			&mode,
			&p.ReferenceNo,
			&p.Remarks,
			&p.RecordedAt,
			&p.RecordedBy,
		); err != nil {
			return nil, err
		}
		p.Mode = domain.PaymentMode(mode)
		out[invoiceNo] = append(out[invoiceNo], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the invoice row and any payments not stored yet in one
// transaction. Payments are append-only. The row is only replaced while its
// version still equals inv.Version; otherwise Save fails with ErrBusy. On
// success inv.Version is the new stored version.
func (r *InvoiceRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	fields, err := json.Marshal(inv.Fields)
	if err != nil {
		return err
	}
	documents, err := json.Marshal(inv.Documents)
	if err != nil {
		return err
	}
	confidence, err := json.Marshal(inv.Confidence)
	if err != nil {
		return err
	}

	derived := inv.StoredVariance()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (
			invoice_no, status, fields, documents, confidence,
			invoice_amount, lr_weight, site_weight,
			weight_difference, weight_loss_percentage, deduction_amount, final_bill_amount, variance_class,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::bigint + 1)
		ON CONFLICT (invoice_no) DO UPDATE SET
			status = EXCLUDED.status,
			fields = EXCLUDED.fields,
			documents = EXCLUDED.documents,
			confidence = EXCLUDED.confidence,
			invoice_amount = EXCLUDED.invoice_amount,
			lr_weight = EXCLUDED.lr_weight,
			site_weight = EXCLUDED.site_weight,
			weight_difference = EXCLUDED.weight_difference,
			weight_loss_percentage = EXCLUDED.weight_loss_percentage,
			deduction_amount = EXCLUDED.deduction_amount,
			final_bill_amount = EXCLUDED.final_bill_amount,
			variance_class = EXCLUDED.variance_class,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE invoices.version = $16::bigint`,
		inv.InvoiceNo,
		string(inv.Status),
		string(fields),
		string(documents),
		string(confidence),
		inv.InvoiceAmount,
		inv.LRWeight,
		inv.SiteWeight,
		derived.Difference,
		derived.LossPct,
		derived.Deduction,
		derived.FinalAmount,
		derived.Classification,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("save invoice %s: %w", inv.InvoiceNo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewError("Save", domain.ErrBusy, "changed since it was loaded")
	}

	for _, p := range inv.Payments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_payments (id, invoice_no, amount, payment_date, payment_mode, reference_no, remarks, recorded_at, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			p.ID,
			inv.InvoiceNo,
			p.Amount,
			p.PaymentDate,
			string(p.Mode),
			p.ReferenceNo,
			p.Remarks,
			p.RecordedAt,
			p.RecordedBy,
		)
		if err != nil {
			return fmt.Errorf("save payment %s for %s: %w", p.ID, inv.InvoiceNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, invoiceNo string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE invoice_no = $1`, invoiceNo)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewError("Delete", domain.ErrNotFound, invoiceNo)
	}
	return nil
}
