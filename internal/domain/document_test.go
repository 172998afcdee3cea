package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentSetCompleteness(t *testing.T) {
	s := DocumentSet{}
	assert.Equal(t, RequiredDocuments, s.MissingRequired())

	s.Attach(DocSiteWeighment, Attachment{Filename: "site.jpg"})
	s.Attach(DocInvoice, Attachment{Filename: "inv.pdf"})
	assert.Equal(t, []DocumentKind{DocLR, DocPartyWeighment}, s.MissingRequired())
	assert.False(t, s.IsComplete())

	s.Attach(DocPartyWeighment, Attachment{Filename: "party.jpg"})
	s.Attach(DocLR, Attachment{Filename: "lr.pdf"})
	assert.True(t, s.IsComplete())
	assert.Empty(t, s.MissingRequired())
}

func TestDocumentSetTollGateIsOptional(t *testing.T) {
	s := DocumentSet{}
	for _, k := range RequiredDocuments {
		s.Attach(k, Attachment{Filename: string(k)})
	}
	assert.True(t, s.IsComplete())
	assert.False(t, s.Has(DocTollGate))
}

func TestDocumentSetAttachReplaces(t *testing.T) {
	s := DocumentSet{}
	s.Attach(DocLR, Attachment{Filename: "old.pdf", Ref: "a"})
	s.Attach(DocLR, Attachment{Filename: "new.pdf", Ref: "b"})
	assert.Len(t, s, 1)
	assert.Equal(t, "new.pdf", s[DocLR].Filename)
}

func TestParseDocumentKind(t *testing.T) {
	k, err := ParseDocumentKind("party_weighment")
	require.NoError(t, err)
	assert.Equal(t, DocPartyWeighment, k)

	_, err = ParseDocumentKind("passport")
	assert.ErrorIs(t, err, ErrInvalidDocumentKind)
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-05": "2024-03-05",
		"05/03/2024": "2024-03-05",
		"05-03-2024": "2024-03-05",
		"2024/03/05": "2024-03-05",
	}
	for in, want := range cases {
		got, ok := NormalizeDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := NormalizeDate("March 5")
	assert.False(t, ok)
}
