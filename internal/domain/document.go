package domain

import "time"

type DocumentKind string

const (
	DocInvoice        DocumentKind = "invoice"
	DocLR             DocumentKind = "lr"
	DocPartyWeighment DocumentKind = "party_weighment"
	DocSiteWeighment  DocumentKind = "site_weighment"
	DocTollGate       DocumentKind = "toll_gate"
)

// DocumentKinds is the fixed catalog in display order.
var DocumentKinds = []DocumentKind{DocInvoice, DocLR, DocPartyWeighment, DocSiteWeighment, DocTollGate}

// RequiredDocuments must all be attached for an invoice to count as complete.
var RequiredDocuments = []DocumentKind{DocInvoice, DocLR, DocPartyWeighment, DocSiteWeighment}

// overdueDocuments is the subset checked by the document-overdue rule; the
// invoice document itself is not chased.
var overdueDocuments = []DocumentKind{DocLR, DocPartyWeighment, DocSiteWeighment}

func ParseDocumentKind(s string) (DocumentKind, error) {
	for _, k := range DocumentKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", FieldError("ParseDocumentKind", ErrInvalidDocumentKind, s)
}

type Attachment struct {
	Filename   string    `json:"filename"`
	Ref        string    `json:"ref"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentSet maps attached kinds to their stored files.
type DocumentSet map[DocumentKind]Attachment

// Attach replaces any previous attachment of the same kind.
func (s DocumentSet) Attach(kind DocumentKind, a Attachment) {
	s[kind] = a
}

func (s DocumentSet) Has(kind DocumentKind) bool {
	_, ok := s[kind]
	return ok
}

func (s DocumentSet) IsComplete() bool {
	return len(s.MissingRequired()) == 0
}

// MissingRequired lists required kinds not yet attached, in catalog order.
func (s DocumentSet) MissingRequired() []DocumentKind {
	return s.missing(RequiredDocuments)
}

// MissingForOverdue lists the chased kinds (lr and both weighments) not yet attached.
func (s DocumentSet) MissingForOverdue() []DocumentKind {
	return s.missing(overdueDocuments)
}

// Attached lists attached kinds in catalog order.
func (s DocumentSet) Attached() []DocumentKind {
	var out []DocumentKind
	for _, k := range DocumentKinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s DocumentSet) missing(kinds []DocumentKind) []DocumentKind {
	var out []DocumentKind
	for _, k := range kinds {
		if !s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
