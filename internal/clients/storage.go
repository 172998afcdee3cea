package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a stored document or export is missing.
var ErrObjectNotFound = errors.New("stored object not found")

type StorageClient struct {
	BaseDir      string // absolute or relative directory to store files
	PublicPrefix string // URL prefix where files are served, e.g. "/files"
	BaseURL      string // optional absolute base URL (scheme+host[:port]) used to build file URLs
}

// NewLocalStorage creates a storage client; baseDir will be created if missing.
func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*StorageClient, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}

	return &StorageClient{BaseDir: baseDir, PublicPrefix: publicPrefix, BaseURL: baseURL}, nil
}

func randomPrefix() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate file name: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// safeSegment turns an invoice number into a single path segment.
func safeSegment(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(strings.TrimSpace(s))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize file: %w", err)
	}
	return nil
}

// Save writes an export to baseDir under a unique name (random prefix plus the
// given file name) and returns that name.
func (s *StorageClient) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	fileName = filepath.Base(fileName)

	unique, err := randomPrefix()
	if err != nil {
		return "", err
	}
	final := fmt.Sprintf("%s_%s", unique, fileName)

	if err := writeAtomic(filepath.Join(s.BaseDir, final), data); err != nil {
		return "", err
	}
	return final, nil
}

// GetURL returns public URL for a saved file. If BaseURL is configured, it builds an absolute URL
// (BaseURL + PublicPrefix + / + filename). Otherwise it returns a relative path (PublicPrefix/filename).
func (s *StorageClient) GetURL(fileName string) string {
	prefix := s.PublicPrefix
	if prefix == "" {
		prefix = "/files"
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}

	if s.BaseURL != "" {
		base := strings.TrimSuffix(s.BaseURL, "/")
		return fmt.Sprintf("%s%s/%s", base, prefix, fileName)
	}
	return fmt.Sprintf("%s/%s", prefix, fileName)
}

// SaveExport stores a generated report and returns its download URL.
func (s *StorageClient) SaveExport(ctx context.Context, fileName string, data []byte) (string, error) {
	saved, err := s.Save(ctx, fileName, data)
	if err != nil {
		return "", err
	}
	return s.GetURL(saved), nil
}

// PutDocument stores an invoice attachment as <invoice>/<kind>_<random>_<name>
// and returns that relative path as the reference.
func (s *StorageClient) PutDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (string, error) {
	dir := safeSegment(invoiceNo)
	if err := os.MkdirAll(filepath.Join(s.BaseDir, dir), 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure invoice dir: %w", err)
	}

	unique, err := randomPrefix()
	if err != nil {
		return "", err
	}
	ref := filepath.ToSlash(filepath.Join(dir, fmt.Sprintf("%s_%s_%s", kind, unique, filepath.Base(fileName))))

	if err := writeAtomic(filepath.Join(s.BaseDir, filepath.FromSlash(ref)), data); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *StorageClient) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage reference %q", ref)
	}
	return filepath.Join(s.BaseDir, clean), nil
}

func (s *StorageClient) OpenDocument(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// DeleteDocument removes a stored attachment; a missing file is not an error.
func (s *StorageClient) DeleteDocument(ctx context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	// drop the per-invoice directory once it is empty
	_ = os.Remove(filepath.Dir(path))
	return nil
}

// CleanupOlderThan deletes files older than given duration in base dir.
func (s *StorageClient) CleanupOlderThan(d time.Duration) error {
	now := time.Now()
	return filepath.WalkDir(s.BaseDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > d {
			_ = os.Remove(path) // best-effort
		}
		return nil
	})
}
