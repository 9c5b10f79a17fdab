package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrObjectNotFound is returned by backends when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Bucket is a flat key/value object store with hierarchical, slash-separated keys.
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
}

// Move relocates an object with two calls: copy, then delete the original.
func Move(ctx context.Context, b Bucket, srcKey, dstKey string) error {
	if err := b.Copy(ctx, srcKey, dstKey); err != nil {
		return err
	}
	if err := b.Delete(ctx, srcKey); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("delete %s after copy: %w", srcKey, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix. Missing objects are ignored.
func DeletePrefix(ctx context.Context, b Bucket, prefix string) (int, error) {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		if err := b.Delete(ctx, key); err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				continue
			}
			return deleted, fmt.Errorf("delete %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("empty object key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return key, nil
}
