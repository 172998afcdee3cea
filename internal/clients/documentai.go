package clients

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

// MaxDocumentSizeBytes is the largest document sent for processing (20MB).
const MaxDocumentSizeBytes = 20 * 1024 * 1024

var (
	ErrExtractionDisabled = errors.New("document extraction is not configured")
	ErrDocumentTooLarge   = errors.New("document exceeds size limit")
)

type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	CredentialsFile  string
	Timeout          time.Duration
}

// ExtractInput is one stored document handed to the extraction backend.
type ExtractInput struct {
	Kind     domain.DocumentKind
	Filename string
	Data     []byte
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// DocumentAIClient turns shipment documents into flat invoice fields using a
// Document AI processor.
type DocumentAIClient struct {
	client  *documentai.DocumentProcessorClient
	process processFunc
	config  DocumentAIConfig
	log     zerolog.Logger
}

func NewDocumentAIClient(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIClient, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("%w: project and processor id are required", ErrExtractionDisabled)
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	var opts []option.ClientOption
	if cfg.Location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create document ai client for location %s: %w", cfg.Location, err)
	}

	c := &DocumentAIClient{
		client: client,
		config: cfg,
		log:    logger.WithComponent("document-ai"),
	}
	c.process = func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	}
	return c, nil
}

func (c *DocumentAIClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ProcessorName is the fully qualified processor (or processor version) resource.
func (c *DocumentAIClient) ProcessorName() string {
	if c.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			c.config.ProjectID, c.config.Location, c.config.ProcessorID, c.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.config.ProjectID, c.config.Location, c.config.ProcessorID)
}

// Extract processes every document and returns canonical field values with
// their confidence. When two documents yield the same key the more confident
// value wins.
func (c *DocumentAIClient) Extract(ctx context.Context, docs []ExtractInput) (map[string]string, map[string]float32, error) {
	const op = "Extract"
	if c == nil || c.process == nil {
		return nil, nil, domain.Upstream(op, ErrExtractionDisabled)
	}

	fields := map[string]string{}
	confidence := map[string]float32{}

	for _, d := range docs {
		if len(d.Data) > MaxDocumentSizeBytes {
			return nil, nil, domain.Upstream(op, fmt.Errorf("%s: %w: %d bytes", d.Filename, ErrDocumentTooLarge, len(d.Data)))
		}

		doc, err := c.processOne(ctx, d)
		if err != nil {
			return nil, nil, domain.Upstream(op, fmt.Errorf("%s (%s): %w", d.Filename, d.Kind, err))
		}

		for _, e := range doc.GetEntities() {
			key := fieldKeyFor(d.Kind, e.GetType())
			value := entityValue(key, e)
			if key == "" || value == "" || domain.IsDerivedField(key) {
				continue
			}
			conf := e.GetConfidence()
			if conf <= 0 {
				conf = domain.ScoreField(key, value)
			}

			c.log.Debug().
				Str("doc_kind", string(d.Kind)).
				Str("entity_type", e.GetType()).
				Str("field", key).
				Float32("confidence", conf).
				Msg("document ai entity")

			if prev, ok := confidence[key]; ok && prev >= conf {
				continue
			}
			fields[key] = value
			confidence[key] = conf
		}
	}

	c.log.Info().Int("documents", len(docs)).Int("fields", len(fields)).Msg("document ai extraction completed")
	return fields, confidence, nil
}

func (c *DocumentAIClient) processOne(ctx context.Context, d ExtractInput) (*documentaipb.Document, error) {
	pctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.process(pctx, &documentaipb.ProcessRequest{
		Name: c.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  d.Data,
				MimeType: mimeTypeFor(d.Filename, d.Data),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.GetDocument() == nil {
		return nil, errors.New("no document in response")
	}
	return resp.GetDocument(), nil
}

func mimeTypeFor(filename string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return http.DetectContentType(data)
}

var weightEntityKeys = map[string]bool{
	"weight":         true,
	"net_weight":     true,
	"gross_weight":   true,
	"actual_weight":  true,
	"charged_weight": true,
}

// fieldKeyFor resolves an entity label, attributing bare weights to the
// document they were read from.
func fieldKeyFor(kind domain.DocumentKind, entityType string) string {
	key := domain.NormalizeFieldKey(entityType)
	if !weightEntityKeys[key] {
		return key
	}
	switch kind {
	case domain.DocLR:
		return domain.FieldLRWeight
	case domain.DocSiteWeighment:
		return domain.FieldSiteWeight
	case domain.DocPartyWeighment:
		return "party_weight"
	}
	return key
}

var numberPattern = regexp.MustCompile(`-?[0-9][0-9,]*(\.[0-9]+)?`)

func entityValue(key string, e *documentaipb.Document_Entity) string {
	text := strings.TrimSpace(e.GetMentionText())
	nv := e.GetNormalizedValue()

	switch key {
	case domain.FieldInvoiceDate, domain.FieldLRDate:
		if d := nv.GetDateValue(); d != nil && d.GetYear() > 0 {
			return fmt.Sprintf("%04d-%02d-%02d", d.GetYear(), d.GetMonth(), d.GetDay())
		}
		if norm, ok := domain.NormalizeDate(text); ok {
			return norm
		}
		return text

	case domain.FieldInvoiceAmount, domain.FieldLRWeight, domain.FieldSiteWeight, "party_weight":
		if m := nv.GetMoneyValue(); m != nil {
			return decimal.New(m.GetUnits(), 0).Add(decimal.New(int64(m.GetNanos()), -9)).String()
		}
		if v := nv.GetFloatValue(); v != 0 {
			return decimal.NewFromFloat32(v).String()
		}
		raw := numberPattern.FindString(text)
		if raw == "" {
			return ""
		}
		return strings.ReplaceAll(raw, ",", "")
	}

	if nv.GetText() != "" {
		return strings.TrimSpace(nv.GetText())
	}
	return text
}
