package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/genproto/googleapis/type/money"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

func fakeDocumentAI(cfg DocumentAIConfig, byMime map[string]*documentaipb.Document, calls *[]*documentaipb.ProcessRequest) *DocumentAIClient {
	return &DocumentAIClient{
		config: cfg,
		log:    logger.Nop(),
		process: func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			*calls = append(*calls, req)
			doc, ok := byMime[req.GetRawDocument().GetMimeType()]
			if !ok {
				return nil, errors.New("PERMISSION_DENIED")
			}
			return &documentaipb.ProcessResponse{Document: doc}, nil
		},
	}
}

func TestDocumentAIProcessorName(t *testing.T) {
	c := &DocumentAIClient{config: DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "abc"}}
	assert.Equal(t, "projects/p/locations/eu/processors/abc", c.ProcessorName())

	c.config.ProcessorVersion = "v2"
	assert.Equal(t, "projects/p/locations/eu/processors/abc/processorVersions/v2", c.ProcessorName())
}

func TestDocumentAIExtract(t *testing.T) {
	invoiceDoc := &documentaipb.Document{Entities: []*documentaipb.Document_Entity{
		{Type: "invoice_number", MentionText: "INV-2024-001", Confidence: 0.9},
		{Type: "Bill To", MentionText: " Acme Steel ", Confidence: 0.7},
		{
			Type:        "invoice_date",
			MentionText: "5 June 2024",
			NormalizedValue: &documentaipb.Document_Entity_NormalizedValue{
				StructuredValue: &documentaipb.Document_Entity_NormalizedValue_DateValue{
					DateValue: &date.Date{Year: 2024, Month: 6, Day: 5},
				},
			},
		},
		{
			Type:        "total_amount",
			MentionText: "Rs. 1,00,000.50",
			NormalizedValue: &documentaipb.Document_Entity_NormalizedValue{
				StructuredValue: &documentaipb.Document_Entity_NormalizedValue_MoneyValue{
					MoneyValue: &money.Money{CurrencyCode: "INR", Units: 100000, Nanos: 500000000},
				},
			},
		},
		{Type: "deduction_amount", MentionText: "10"},
	}}
	siteDoc := &documentaipb.Document{Entities: []*documentaipb.Document_Entity{
		{Type: "net_weight", MentionText: "1,998.5 kg", Confidence: 0.88},
		{Type: "vehicle_number", MentionText: "MH12AB1234"},
	}}

	var calls []*documentaipb.ProcessRequest
	c := fakeDocumentAI(DocumentAIConfig{ProjectID: "p", Location: "us", ProcessorID: "x", Timeout: 5 * time.Second},
		map[string]*documentaipb.Document{
			"application/pdf": invoiceDoc,
			"image/jpeg":      siteDoc,
		}, &calls)

	fields, conf, err := c.Extract(context.Background(), []ExtractInput{
		{Kind: domain.DocInvoice, Filename: "invoice.pdf", Data: []byte("%PDF-1.4")},
		{Kind: domain.DocSiteWeighment, Filename: "site.JPG", Data: []byte{0xff, 0xd8, 0xff}},
	})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "projects/p/locations/us/processors/x", calls[0].GetName())

	assert.Equal(t, "INV-2024-001", fields["invoice_no"])
	assert.Equal(t, "Acme Steel", fields[domain.FieldBuyerName])
	assert.Equal(t, "2024-06-05", fields[domain.FieldInvoiceDate])
	assert.Equal(t, "100000.5", fields[domain.FieldInvoiceAmount])
	assert.Equal(t, "1998.5", fields[domain.FieldSiteWeight])
	assert.Equal(t, "MH12AB1234", fields["vehicle_no"])
	assert.NotContains(t, fields, "deduction_amount")

	assert.InDelta(t, 0.9, conf["invoice_no"], 1e-6)
	assert.InDelta(t, 0.95, conf["vehicle_no"], 1e-6, "scored fallback when the backend reports none")
}

func TestDocumentAIExtractUpstreamFailure(t *testing.T) {
	var calls []*documentaipb.ProcessRequest
	c := fakeDocumentAI(DocumentAIConfig{Timeout: 5 * time.Second}, nil, &calls)

	_, _, err := c.Extract(context.Background(), []ExtractInput{{Kind: domain.DocLR, Filename: "lr.pdf", Data: []byte("%PDF")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	var nilClient *DocumentAIClient
	_, _, err = nilClient.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFieldKeyForWeights(t *testing.T) {
	assert.Equal(t, domain.FieldLRWeight, fieldKeyFor(domain.DocLR, "Weight"))
	assert.Equal(t, domain.FieldSiteWeight, fieldKeyFor(domain.DocSiteWeighment, "gross weight"))
	assert.Equal(t, "party_weight", fieldKeyFor(domain.DocPartyWeighment, "net_weight"))
	assert.Equal(t, "lr_no", fieldKeyFor(domain.DocLR, "LR Number"))
}
