package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired collection link")
	ErrCollectionDisabled = errors.New("collection is disabled for this user")
	ErrProfileNotFound    = errors.New("profile not found")
)

const defaultCollectorName = "Recipe Collector"

// CollectionInfo is what a valid collection link resolves to.
type CollectionInfo struct {
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name"`
	RawFullName *string `json:"raw_full_name"`
	Token       string  `json:"token"`
}

// CollectionSettings is the host's view of their collection link.
type CollectionSettings struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

// CollectionService manages host collection links.
type CollectionService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewCollectionService(gdb *gorm.DB) *CollectionService {
	return &CollectionService{db: gdb, log: logger.WithComponent("collection")}
}

// ValidateToken resolves a collection link to its owner. Unknown tokens and
// disabled collections are distinct errors; neither has side effects.
func (s *CollectionService) ValidateToken(ctx context.Context, token string) (*CollectionInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var profile db.Profile
	if err := s.db.WithContext(ctx).Where("collection_link_token = ?", token).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !profile.CollectionEnabled {
		return nil, ErrCollectionDisabled
	}

	name := strings.TrimSpace(derefString(profile.FullName))
	if name == "" {
		name = defaultCollectorName
	}
	return &CollectionInfo{
		UserID:      profile.ID,
		UserName:    name,
		RawFullName: profile.FullName,
		Token:       token,
	}, nil
}

func (s *CollectionService) Settings(ctx context.Context, userID string) (CollectionSettings, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return CollectionSettings{}, err
	}
	return CollectionSettings{Token: derefString(profile.CollectionLinkToken), Enabled: profile.CollectionEnabled}, nil
}

// RegenerateToken replaces the link token; the old link stops working.
func (s *CollectionService) RegenerateToken(ctx context.Context, userID string) (string, error) {
	if _, err := s.profile(ctx, userID); err != nil {
		return "", err
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.db.WithContext(ctx).Model(&db.Profile{}).
		Where("id = ?", userID).
		Update("collection_link_token", token).Error; err != nil {
		return "", err
	}
	s.log.Info("collection token regenerated", "user_id", userID)
	return token, nil
}

func (s *CollectionService) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if _, err := s.profile(ctx, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&db.Profile{}).
		Where("id = ?", userID).
		Update("collection_enabled", enabled).Error
}

func (s *CollectionService) profile(ctx context.Context, userID string) (*db.Profile, error) {
	var profile db.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}
