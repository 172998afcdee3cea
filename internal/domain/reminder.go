package domain

import (
	"fmt"
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func ParseChannel(s string) (Channel, bool) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return c, true
	}
	return "", false
}

type ContactInfo struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ReminderRequest is what the reminder transport delivers.
type ReminderRequest struct {
	ID          string            `json:"id"`
	Candidate   ReminderCandidate `json:"candidate"`
	Channels    []Channel         `json:"channels"`
	Contact     ContactInfo       `json:"contact"`
	Message     string            `json:"message"`
	RequestedAt time.Time         `json:"requested_at"`
	RequestedBy string            `json:"requested_by,omitempty"`
}

// Validate checks the channel and contact rules for a dispatch.
func (r ReminderRequest) Validate() error {
	const op = "Dispatch"
	if len(r.Channels) == 0 {
		return FieldError(op, ErrMissingField, "channels")
	}
	for _, c := range r.Channels {
		switch c {
		case ChannelEmail:
			if strings.TrimSpace(r.Contact.Email) == "" {
				return FieldError(op, ErrMissingField, "email")
			}
		case ChannelSMS, ChannelWhatsApp:
			if strings.TrimSpace(r.Contact.Phone) == "" {
				return FieldError(op, ErrMissingField, "phone")
			}
		default:
			return &Error{Op: op, Kind: ErrMissingField, Field: "channels", Details: "unknown channel " + string(c)}
		}
	}
	if strings.TrimSpace(r.Message) == "" {
		return FieldError(op, ErrMissingField, "message")
	}
	return nil
}

// DefaultReminderMessage renders the standard payment reminder body.
func DefaultReminderMessage(c ReminderCandidate) string {
	buyer := c.BuyerName
	if buyer == "" {
		buyer = "Customer"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", buyer)
	fmt.Fprintf(&b, "This is a friendly reminder regarding payment for Invoice %s.\n\n", c.InvoiceNo)
	b.WriteString("Payment Details:\n")
	fmt.Fprintf(&b, "- Invoice Number: %s\n", c.InvoiceNo)
	if c.InvoiceDate != "" {
		fmt.Fprintf(&b, "- Invoice Date: %s\n", c.InvoiceDate)
	}
	fmt.Fprintf(&b, "- Due Amount: %s\n\n", c.BalanceDue.StringFixed(2))
	b.WriteString("Please process the payment at your earliest convenience. ")
	b.WriteString("If you have already made the payment, please share the transaction details.\n\n")
	b.WriteString("Thank you for your business.\n\n")
	b.WriteString("Best regards,")
	return b.String()
}
