package clients

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3DocumentKey(t *testing.T) {
	c := &S3Client{prefix: "documents/"}

	key, err := c.documentKey("INV/77", "site_weighment", "scans/site.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "documents/INV_77/site_weighment_"), key)
	assert.True(t, strings.HasSuffix(key, "_site.jpg"), key)

	other, err := c.documentKey("INV/77", "site_weighment", "scans/site.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestS3ClientWithoutConnection(t *testing.T) {
	c := &S3Client{}
	_, err := c.OpenDocument(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, c.DeleteDocument(context.Background(), "x"))
	_, err = c.UploadXLSX(context.Background(), "a.xlsx", []byte("x"))
	assert.Error(t, err)
}
