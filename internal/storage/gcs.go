package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage bucket.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	// PublicBaseURL overrides https://storage.googleapis.com/<bucket> (CDN or emulator).
	PublicBaseURL string
}

// GCSBucket implements Bucket on a single GCS bucket.
type GCSBucket struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

func NewGCSBucket(ctx context.Context, cfg GCSConfig) (*GCSBucket, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}
	if creds := strings.TrimSpace(cfg.CredentialsFile); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSBucket{
		client:        client,
		bucket:        name,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

func (b *GCSBucket) object(key string) (*gcs.ObjectHandle, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return b.client.Bucket(b.bucket).Object(cleaned), nil
}

func (b *GCSBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer %s: %w", key, err)
	}
	return nil
}

func (b *GCSBucket) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := b.object(srcKey)
	if err != nil {
		return err
	}
	dst, err := b.object(dstKey)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("copy %s: %w", srcKey, ErrObjectNotFound)
		}
		return fmt.Errorf("copy %s->%s: %w", srcKey, dstKey, err)
	}
	return nil
}

func (b *GCSBucket) Delete(ctx context.Context, key string) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("delete %s: %w", key, ErrObjectNotFound)
		}
		return fmt.Errorf("delete gcs object %s: %w", key, err)
	}
	return nil
}

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := b.client.Bucket(b.bucket).Objects(ctx, &gcs.Query{Prefix: strings.TrimLeft(prefix, "/")})
	keys := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs prefix %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (b *GCSBucket) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", b.publicBaseURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, key)
}
