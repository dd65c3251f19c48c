package cache

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSConfig names the bucket and object prefix for the mirror.
type GCSConfig struct {
	Bucket string `mapstructure:"gcs_bucket"`
	Prefix string `mapstructure:"gcs_prefix"`
}

// GCSMirror uploads cache files to Google Cloud Storage.
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSMirror wraps client. The caller owns the client.
func NewGCSMirror(client *storage.Client, cfg GCSConfig) (*GCSMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSMirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads r under the configured prefix and returns a gs:// URI.
func (m *GCSMirror) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	object := objectName(m.prefix, name)
	if object == "" {
		return "", fmt.Errorf("object name is required")
	}
	writer := m.client.Bucket(m.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, object), nil
}

func objectName(prefix, name string) string {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return ""
	}
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
