// Package archive keeps raw webhook payloads in Cloud Storage so they can
// be replayed or audited.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archiver stores and fetches raw payloads.
type Archiver interface {
	// Put stores payload and returns its gs:// URI.
	Put(ctx context.Context, source string, payload []byte) (string, error)
	// Fetch downloads the object at a gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSArchiver writes to one bucket with a shared client.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCSArchiver creates a storage client for bucket. It assumes
// Application Default Credentials are configured.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchiver: create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket, now: time.Now}, nil
}

// Close closes the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// ObjectName builds webhooks/<source>/YYYY/MM/DD/<id>.json.
func ObjectName(source string, at time.Time, id string) string {
	return path.Join("webhooks", source, at.UTC().Format("2006/01/02"), id+".json")
}

// Put implements Archiver.
func (a *GCSArchiver) Put(ctx context.Context, source string, payload []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	name := ObjectName(source, a.now(), uuid.NewString())
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Put: write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Put: finalize upload %s: %w", name, err)
	}
	return "gs://" + a.bucket + "/" + name, nil
}

// Fetch implements Archiver.
func (a *GCSArchiver) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Nop discards payloads. Used when no archive bucket is configured.
type Nop struct{}

// Put implements Archiver.
func (Nop) Put(context.Context, string, []byte) (string, error) { return "", nil }

// Fetch implements Archiver.
func (Nop) Fetch(_ context.Context, uri string) ([]byte, error) {
	return nil, fmt.Errorf("Fetch: archive disabled, cannot read %s", uri)
}
