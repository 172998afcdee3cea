package clients

import (
	"context"

	"invoicetrack/internal/domain"
	ws "invoicetrack/internal/transport/websocket"
)

// WebSocketClient pushes engine events to operators subscribed on the hub.
// A client built with a nil hub silently drops everything.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) send(topic, typ string, data any) error {
	if c == nil || c.hub == nil {
		return nil
	}
	c.hub.Broadcast(topic, &ws.Message{Type: typ, Data: data})
	return nil
}

// NotifyInvoiceEvent announces a lifecycle change such as "invoice_saved",
// "invoice_completed", "invoice_deleted" or "payment_recorded".
func (c *WebSocketClient) NotifyInvoiceEvent(ctx context.Context, event string, inv *domain.Invoice) error {
	data := map[string]any{
		"invoice_no": inv.InvoiceNo,
		"status":     inv.Status,
	}
	if len(inv.Payments) > 0 || !inv.InvoiceAmount.IsZero() {
		data["ledger"] = inv.Ledger()
	}
	return c.send(ws.TopicInvoices, event, data)
}

func (c *WebSocketClient) NotifyInvoiceDeleted(ctx context.Context, invoiceNo string) error {
	return c.send(ws.TopicInvoices, "invoice_deleted", map[string]any{"invoice_no": invoiceNo})
}

func (c *WebSocketClient) NotifyScanReport(ctx context.Context, r domain.Report) error {
	byTier := r.ByTier()
	return c.send(ws.TopicReports, "scan_report", map[string]any{
		"generated_at": r.GeneratedAt,
		"overdue":      len(r.Overdue),
		"critical":     len(byTier[domain.TierCritical]),
		"high":         len(byTier[domain.TierHigh]),
		"standard":     len(byTier[domain.TierStandard]),
	})
}

func (c *WebSocketClient) NotifyReminder(ctx context.Context, candidate domain.ReminderCandidate, channels []string, outcome string) error {
	return c.send(ws.TopicReminders, "reminder_"+outcome, map[string]any{
		"invoice_no":  candidate.InvoiceNo,
		"tier":        candidate.Tier,
		"balance_due": candidate.BalanceDue,
		"channels":    channels,
	})
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, exportID string, progress float64, stage string) error {
	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	return c.send(ws.TopicExports, "export_progress", data)
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, exportID, url, filename string) error {
	return c.send(ws.TopicExports, "export_complete", map[string]any{
		"id":       exportID,
		"url":      url,
		"filename": filename,
	})
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, exportID, errMsg string) error {
	return c.send(ws.TopicExports, "export_failed", map[string]any{
		"id":      exportID,
		"message": errMsg,
	})
}
