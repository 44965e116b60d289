package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload is an image submitted with a ticket create or update request.
type Upload interface {
	Filename() string
	Open() (io.ReadCloser, error)
}

// ImageStore persists ticket images and hands back the public reference
// stored on the ticket.
type ImageStore interface {
	Save(ctx context.Context, upload Upload) (string, error)
	Remove(ctx context.Context, ref string) error
}

// DiskStore writes images below a directory served at a public prefix.
type DiskStore struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, publicPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	prefix := "/" + strings.Trim(publicPrefix, "/")
	return &DiskStore{dir: dir, prefix: prefix, now: time.Now}, nil
}

// Dir returns the on-disk directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save copies the upload to a unique file and returns "<prefix>/<name>".
func (s *DiskStore) Save(ctx context.Context, upload Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := s.uniqueName(upload.Filename())
	path := filepath.Join(s.dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close image: %w", err)
	}
	return s.prefix + "/" + name, nil
}

// Remove unlinks the file behind ref. References outside the public prefix
// are rejected so a stored value can never point the unlink elsewhere.
func (s *DiskStore) Remove(_ context.Context, ref string) error {
	path, err := s.pathFor(ref)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *DiskStore) pathFor(ref string) (string, error) {
	if !strings.HasPrefix(ref, s.prefix+"/") {
		return "", fmt.Errorf("image ref %q outside %s", ref, s.prefix)
	}
	name := strings.TrimPrefix(ref, s.prefix+"/")
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", errors.New("invalid image ref")
	}
	return filepath.Join(s.dir, name), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (s *DiskStore) uniqueName(original string) string {
	base := unsafeChars.ReplaceAllString(filepath.Base(original), "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "image"
	}
	if len(base) > 80 {
		base = base[len(base)-80:]
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + id + "-" + base
}

// FileHeaderUpload adapts a multipart file part to Upload.
type FileHeaderUpload struct {
	Header *multipart.FileHeader
}

// Filename returns the client-supplied name.
func (u FileHeaderUpload) Filename() string {
	return u.Header.Filename
}

// Open opens the part's content.
func (u FileHeaderUpload) Open() (io.ReadCloser, error) {
	return u.Header.Open()
}

// FromFileHeaders wraps multipart parts.
func FromFileHeaders(headers []*multipart.FileHeader) []Upload {
	uploads := make([]Upload, 0, len(headers))
	for _, h := range headers {
		if h == nil {
			continue
		}
		uploads = append(uploads, FileHeaderUpload{Header: h})
	}
	return uploads
}

// PathUpload reads an upload from a local file.
type PathUpload string

func (p PathUpload) Filename() string {
	return filepath.Base(string(p))
}

func (p PathUpload) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// FromPaths wraps local file paths.
func FromPaths(paths []string) []Upload {
	uploads := make([]Upload, 0, len(paths))
	for _, p := range paths {
		uploads = append(uploads, PathUpload(p))
	}
	return uploads
}
