package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smallplates/internal/logger"
)

// FinalizeRequest identifies where a staging session's files belong.
// RecipeID may be a placeholder when the recipe row does not exist yet.
type FinalizeRequest struct {
	OwnerID  string
	GuestID  string
	RecipeID string
	Session  *StagingSession
}

// Mover relocates staged files to their permanent path.
type Mover struct {
	bucket Bucket
	log    *slog.Logger
}

func NewMover(bucket Bucket, log *slog.Logger) *Mover {
	return &Mover{bucket: bucket, log: logger.OrDefault(log, "mover")}
}

// RecipePrefix is users/<owner>/guests/<guest>/recipes/<recipe>/.
func RecipePrefix(ownerID, guestID, recipeID string) string {
	return fmt.Sprintf("users/%s/guests/%s/recipes/%s/", ownerID, guestID, recipeID)
}

// FinalKey places the n-th (1-based) file under images, audio or documents.
func FinalKey(ownerID, guestID, recipeID string, n int, f StagedFile) string {
	return fmt.Sprintf("%s%s/%03d.%s",
		RecipePrefix(ownerID, guestID, recipeID),
		folderFor(f.ContentType),
		n,
		fileExtension(f.TempPath, f.ContentType),
	)
}

func folderFor(contentType string) string {
	ct := normalizeContentType(contentType)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return "audio"
	case ct == "application/pdf":
		return "documents"
	default:
		return "images"
	}
}

// Finalize copies every staged file to its final key and returns public URLs
// in input order. It is all-or-nothing: if any copy fails, final objects
// already written are removed and the staging session is left untouched for
// the caller to clean up. On success the staged originals are deleted.
func (m *Mover) Finalize(ctx context.Context, req FinalizeRequest) ([]string, error) {
	if req.Session == nil || len(req.Session.Files) == 0 {
		return []string{}, nil
	}
	if req.OwnerID == "" || req.GuestID == "" || req.RecipeID == "" {
		return nil, errors.New("finalize: owner, guest and recipe ids are required")
	}

	copied := make([]string, 0, len(req.Session.Files))
	for i, f := range req.Session.Files {
		dst := FinalKey(req.OwnerID, req.GuestID, req.RecipeID, i+1, f)
		if err := m.bucket.Copy(ctx, f.TempPath, dst); err != nil {
			m.rollback(ctx, copied)
			return nil, fmt.Errorf("move %s: %w", f.OriginalName, err)
		}
		copied = append(copied, dst)
	}

	for _, f := range req.Session.Files {
		if err := m.bucket.Delete(ctx, f.TempPath); err != nil && !errors.Is(err, ErrObjectNotFound) {
			m.log.Warn("delete staged original", "key", f.TempPath, "error", err)
		}
	}

	urls := make([]string, len(copied))
	for i, key := range copied {
		urls[i] = m.bucket.PublicURL(key)
	}
	return urls, nil
}

func (m *Mover) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := m.bucket.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			m.log.Warn("rollback final object", "key", key, "error", err)
		}
	}
}

// RemoveRecipeFiles deletes every permanent file of one recipe.
func (m *Mover) RemoveRecipeFiles(ctx context.Context, ownerID, guestID, recipeID string) error {
	_, err := DeletePrefix(ctx, m.bucket, RecipePrefix(ownerID, guestID, recipeID))
	return err
}
