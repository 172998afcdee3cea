package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string

	// PresignTTL bounds export download links.
	PresignTTL time.Duration
}

type S3Client struct {
	raw        *minio.Client
	bucket     string
	prefix     string
	presignTTL time.Duration
}

func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &S3Client{
		raw:        client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		presignTTL: ttl,
	}, nil
}

func (c *S3Client) put(ctx context.Context, key string, data []byte, contentType string) error {
	if c.raw == nil {
		return fmt.Errorf("s3 client is nil")
	}
	_, err := c.raw.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q failed: %w", key, err)
	}
	return nil
}

// documentKey builds <prefix><invoice>/<kind>_<random>_<name>.
func (c *S3Client) documentKey(invoiceNo, kind, fileName string) (string, error) {
	unique, err := randomPrefix()
	if err != nil {
		return "", err
	}
	return c.prefix + path.Join(safeSegment(invoiceNo), fmt.Sprintf("%s_%s_%s", kind, unique, path.Base(fileName))), nil
}

func (c *S3Client) PutDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (string, error) {
	key, err := c.documentKey(invoiceNo, kind, fileName)
	if err != nil {
		return "", err
	}
	if err := c.put(ctx, key, data, http.DetectContentType(data)); err != nil {
		return "", err
	}
	return key, nil
}

func (c *S3Client) OpenDocument(ctx context.Context, ref string) (io.ReadCloser, error) {
	if c.raw == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	obj, err := c.raw.GetObject(ctx, c.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q failed: %w", ref, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %q failed: %w", ref, err)
	}
	return obj, nil
}

func (c *S3Client) DeleteDocument(ctx context.Context, ref string) error {
	if c.raw == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if err := c.raw.RemoveObject(ctx, c.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q failed: %w", ref, err)
	}
	return nil
}

func (c *S3Client) UploadXLSX(ctx context.Context, fileName string, data []byte) (string, error) {
	key := c.prefix + "exports/" + fileName
	if err := c.put(ctx, key, data, xlsxContentType); err != nil {
		return "", err
	}
	return key, nil
}

func (c *S3Client) GetTemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if c.raw == nil {
		return "", fmt.Errorf("s3 client is nil")
	}

	u, err := c.raw.PresignedGetObject(ctx, c.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", key, err)
	}

	return u.String(), nil
}

// SaveExport uploads a report and returns a presigned download link.
func (c *S3Client) SaveExport(ctx context.Context, fileName string, data []byte) (string, error) {
	key, err := c.UploadXLSX(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return c.GetTemporaryURL(ctx, key, c.presignTTL)
}
