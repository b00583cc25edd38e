package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"compliance-tracker/internal/config"
	"compliance-tracker/internal/metrics"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Document categories, one directory each under the upload root
const (
	CategoryLicenses    = "licenses"
	CategoryRemittances = "remittances"
)

// DocumentStorage keeps uploaded license documents and remittance proofs
// on local disk. References are paths relative to the upload root.
type DocumentStorage struct {
	root    string
	maxSize int64
	allowed map[string]bool
	metrics *metrics.Metrics
}

func NewDocumentStorage(cfg config.UploadsConfig, m *metrics.Metrics) *DocumentStorage {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &DocumentStorage{
		root:    cfg.Dir,
		maxSize: cfg.MaxSize,
		allowed: allowed,
		metrics: m,
	}
}

// Check validates an upload without storing it
func (s *DocumentStorage) Check(fh *multipart.FileHeader) error {
	ext := extension(fh.Filename)
	if ext == "" || !s.allowed[ext] {
		return fmt.Errorf("%w: file type %q is not allowed", ErrUploadRejected, ext)
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return fmt.Errorf("%w: file exceeds the %d byte limit", ErrUploadRejected, s.maxSize)
	}
	return nil
}

// Save stores the upload under its category and returns the reference.
func (s *DocumentStorage) Save(fh *multipart.FileHeader, category string) (string, error) {
	if err := s.Check(fh); err != nil {
		s.metrics.IncUploadRejected()
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	ext := extension(fh.Filename)
	base := slug.Make(strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename)))
	if base == "" {
		base = "document"
	}
	name := fmt.Sprintf("%s_%s.%s", uuid.NewString(), base, ext)

	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	// the header size comes from the client, so enforce the limit on the bytes too
	var r io.Reader = src
	if s.maxSize > 0 {
		r = io.LimitReader(src, s.maxSize+1)
	}
	n, err := io.Copy(dst, r)
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("%w: file exceeds the %d byte limit", ErrUploadRejected, s.maxSize)
		s.metrics.IncUploadRejected()
	}
	if err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}

	return filepath.ToSlash(filepath.Join(category, name)), nil
}

// Path resolves a reference to a file on disk, refusing anything that
// would leave the upload root.
func (s *DocumentStorage) Path(ref string) (string, error) {
	if ref == "" {
		return "", ErrDocumentNotFound
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(ref))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", ErrDocumentNotFound
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", ErrDocumentNotFound
	}
	return full, nil
}

// Remove deletes the stored file behind ref. A missing file is not an error.
func (s *DocumentStorage) Remove(ref string) error {
	path, err := s.Path(ref)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Open returns the stored file behind ref
func (s *DocumentStorage) Open(ref string) (*os.File, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
