package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

var ErrGuestNotFound = errors.New("guest not found")

// GuestLookup identifies a contributor by name within an owner's guest list,
// optionally narrowed to one group.
type GuestLookup struct {
	OwnerID   string
	FirstName string
	LastName  string
	GroupID   string
}

// NewGuest is a guest created by a collection submission.
type NewGuest struct {
	OwnerID     string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	PrintedName string
	GroupID     string
}

// GuestFilter describes filters for the host guest list.
type GuestFilter struct {
	Search          string
	IncludeArchived bool
	Page            int
	PerPage         int
}

type GuestListResult struct {
	Items      []db.Guest `json:"items"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
}

// NotificationPrefs is a partial update; nil fields are left unchanged.
type NotificationPrefs struct {
	OptIn *bool
	Email *string
}

// GuestService is the guest registry.
type GuestService struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

func NewGuestService(gdb *gorm.DB) *GuestService {
	return &GuestService{db: gdb, log: logger.WithComponent("guests"), now: time.Now}
}

// Search returns every candidate for a lookup, ordered by first name.
// Matching is case-insensitive: first name by prefix, last name by substring.
// With a group, only guests that already have a recipe linked to that group
// are candidates, so a guest's history never leaks into a group they have not
// contributed to.
func (s *GuestService) Search(ctx context.Context, lookup GuestLookup) ([]db.Guest, error) {
	first := strings.ToLower(strings.TrimSpace(lookup.FirstName))
	last := strings.ToLower(strings.TrimSpace(lookup.LastName))
	if strings.TrimSpace(lookup.OwnerID) == "" || first == "" {
		return []db.Guest{}, nil
	}

	query := s.db.WithContext(ctx).Model(&db.Guest{}).
		Where("user_id = ? AND is_archived = ?", lookup.OwnerID, false).
		Where(`LOWER(first_name) LIKE ? ESCAPE '\'`, escapeLike(first)+"%").
		Where(`LOWER(last_name) LIKE ? ESCAPE '\'`, "%"+escapeLike(last)+"%")

	if groupID := strings.TrimSpace(lookup.GroupID); groupID != "" {
		query = query.Where(`EXISTS (
			SELECT 1 FROM guest_recipes r
			JOIN group_recipes gr ON gr.recipe_id = r.id
			WHERE r.guest_id = guests.id AND gr.group_id = ? AND gr.removed_at IS NULL
		)`, groupID)
	}

	var guests []db.Guest
	if err := query.Order("first_name ASC").Order("created_at ASC").Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("search guests: %w", err)
	}
	return guests, nil
}

// Resolve returns the first Search match. Several matches are not an error:
// the alphabetically first one wins.
func (s *GuestService) Resolve(ctx context.Context, lookup GuestLookup) (*db.Guest, error) {
	guests, err := s.Search(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if len(guests) == 0 {
		return nil, ErrGuestNotFound
	}
	if len(guests) > 1 {
		s.log.Debug("ambiguous guest match, using first", "owner", lookup.OwnerID, "matches", len(guests))
	}
	return &guests[0], nil
}

// Create inserts a collection guest: submitted, expecting one recipe.
func (s *GuestService) Create(ctx context.Context, input NewGuest) (*db.Guest, error) {
	first := strings.TrimSpace(input.FirstName)
	if strings.TrimSpace(input.OwnerID) == "" || first == "" {
		return nil, newValidationError("first_name is required")
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		email = placeholderEmail(s.now())
	}

	guest := db.Guest{
		UserID:          input.OwnerID,
		GroupID:         stringPtr(input.GroupID),
		FirstName:       first,
		LastName:        strings.TrimSpace(input.LastName),
		PrintedName:     stringPtr(input.PrintedName),
		Email:           email,
		Phone:           stringPtr(input.Phone),
		Status:          db.GuestStatusSubmitted,
		Source:          db.GuestSourceCollection,
		NumberOfRecipes: 1,
		RecipesReceived: 0,
	}
	if err := s.db.WithContext(ctx).Create(&guest).Error; err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	return &guest, nil
}

// PrepareForRecipe runs before a recipe insert for an existing guest. When
// the insert would push received past expected, expected is raised first;
// pending or reached_out guests become submitted. The two writes are not
// atomic; a race can only over-raise the expectation.
func (s *GuestService) PrepareForRecipe(ctx context.Context, guest *db.Guest) error {
	tx := s.db.WithContext(ctx)

	willHave := guest.RecipesReceived + 1
	if willHave > guest.NumberOfRecipes {
		if err := tx.Model(&db.Guest{}).Where("id = ?", guest.ID).
			Update("number_of_recipes", willHave).Error; err != nil {
			return fmt.Errorf("raise expected recipes: %w", err)
		}
		s.log.Debug("raised expected recipes", "guest_id", guest.ID, "from", guest.NumberOfRecipes, "to", willHave)
		guest.NumberOfRecipes = willHave
	}

	if guest.Status == db.GuestStatusPending || guest.Status == db.GuestStatusReachedOut {
		if err := tx.Model(&db.Guest{}).Where("id = ?", guest.ID).
			Update("status", db.GuestStatusSubmitted).Error; err != nil {
			return fmt.Errorf("mark guest submitted: %w", err)
		}
		guest.Status = db.GuestStatusSubmitted
	}
	return nil
}

func (s *GuestService) Get(ctx context.Context, id string) (*db.Guest, error) {
	var guest db.Guest
	if err := s.db.WithContext(ctx).First(&guest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}
	return &guest, nil
}

// List returns the owner's guests matching the filter.
func (s *GuestService) List(ctx context.Context, ownerID string, filter GuestFilter) (GuestListResult, error) {
	result := GuestListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 50),
	}

	query := s.db.WithContext(ctx).Model(&db.Guest{}).Where("user_id = ?", ownerID)
	if !filter.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		query = query.Where(`(LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, like, like, like)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	if err := query.Order("last_name ASC").Order("first_name ASC").
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&result.Items).Error; err != nil {
		return result, err
	}
	return result, nil
}

// Archive soft-deletes a guest; guests are never hard-deleted here.
func (s *GuestService) Archive(ctx context.Context, ownerID, guestID string) error {
	return s.setArchived(ctx, ownerID, guestID, true)
}

func (s *GuestService) Restore(ctx context.Context, ownerID, guestID string) error {
	return s.setArchived(ctx, ownerID, guestID, false)
}

func (s *GuestService) setArchived(ctx context.Context, ownerID, guestID string, archived bool) error {
	res := s.db.WithContext(ctx).Model(&db.Guest{}).
		Where("id = ? AND user_id = ?", guestID, ownerID).
		Update("is_archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGuestNotFound
	}
	return nil
}

// UpdateNotification stores the guest's opt-in; opting in stamps the time.
func (s *GuestService) UpdateNotification(ctx context.Context, guestID string, prefs NotificationPrefs) error {
	updates := map[string]interface{}{}
	if prefs.OptIn != nil {
		updates["notify_opt_in"] = *prefs.OptIn
		if *prefs.OptIn {
			updates["notify_opt_in_at"] = s.now()
		}
	}
	if prefs.Email != nil {
		updates["notify_email"] = stringPtr(*prefs.Email)
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&db.Guest{}).Where("id = ?", guestID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGuestNotFound
	}
	return nil
}

func placeholderEmail(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("NO_EMAIL_%d_%s", now.UnixMilli(), suffix)
}
