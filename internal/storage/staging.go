package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/smallplates/internal/logger"
)

const stagingRoot = "temp/uploads"

// StagedFile describes one uploaded file waiting in the staging area.
type StagedFile struct {
	OriginalName string `json:"original_name"`
	TempPath     string `json:"temp_path"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

// StagingSession is the batch of files uploaded by a single submission.
type StagingSession struct {
	ID    string
	Files []StagedFile
}

// Stager writes submissions into temp/uploads/<session>/ so concurrent
// submissions never share a key.
type Stager struct {
	bucket Bucket
	log    *slog.Logger
	newID  func() string
}

func NewStager(bucket Bucket, log *slog.Logger) *Stager {
	return &Stager{
		bucket: bucket,
		log:    logger.OrDefault(log, "staging"),
		newID:  uuid.NewString,
	}
}

// StagingPrefix is the key prefix holding every file of a session.
func StagingPrefix(sessionID string) string {
	return stagingRoot + "/" + sessionID + "/"
}

// Stage uploads every file under a fresh session id. When any upload fails
// the partial session is removed before the error is returned.
func (s *Stager) Stage(ctx context.Context, files []Upload) (*StagingSession, error) {
	session := &StagingSession{ID: s.newID(), Files: make([]StagedFile, 0, len(files))}

	for i, f := range files {
		key := fmt.Sprintf("%s%03d.%s", StagingPrefix(session.ID), i+1, fileExtension(f.Name, f.ContentType))
		if err := s.bucket.Upload(ctx, key, f.Body, normalizeContentType(f.ContentType)); err != nil {
			if cleanupErr := s.Cleanup(ctx, session.ID); cleanupErr != nil {
				s.log.Warn("cleanup after failed staging", "session", session.ID, "error", cleanupErr)
			}
			return nil, fmt.Errorf("stage %s: %w", f.Name, err)
		}
		session.Files = append(session.Files, StagedFile{
			OriginalName: f.Name,
			TempPath:     key,
			Size:         f.Size,
			ContentType:  normalizeContentType(f.ContentType),
		})
	}

	s.log.Debug("staged files", "session", session.ID, "count", len(session.Files))
	return session, nil
}

// Cleanup deletes everything left under the session. Calling it again for
// the same session is a no-op.
func (s *Stager) Cleanup(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	deleted, err := DeletePrefix(ctx, s.bucket, StagingPrefix(sessionID))
	if err != nil {
		return fmt.Errorf("cleanup staging session %s: %w", sessionID, err)
	}
	if deleted > 0 {
		s.log.Debug("cleaned staging session", "session", sessionID, "deleted", deleted)
	}
	return nil
}

var extensionsByType = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"application/pdf": "pdf",
	"audio/mpeg":      "mp3",
	"audio/mp4":       "m4a",
	"audio/wav":       "wav",
	"audio/webm":      "webm",
	"audio/ogg":       "ogg",
}

func fileExtension(name, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.TrimSpace(name))), ".")
	if ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if mapped, ok := extensionsByType[normalizeContentType(contentType)]; ok {
		return mapped
	}
	return "bin"
}
