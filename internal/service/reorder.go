package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
)

var (
	ErrReorderWhileFiltered = errors.New("reordering is disabled while a search filter is active")
	ErrInvalidPosition      = errors.New("position out of range")
)

const maxConcurrentOrderWrites = 4

// OrderedRecipe is one row of a group's recipe table.
type OrderedRecipe struct {
	RecipeID     string `json:"recipe_id"`
	RecipeName   string `json:"recipe_name"`
	GuestName    string `json:"guest_name"`
	DisplayOrder int    `json:"display_order"`
}

// OrderUpdate is one persisted display_order write.
type OrderUpdate struct {
	RecipeID     string `json:"recipe_id"`
	DisplayOrder int    `json:"display_order"`
}

// ReorderPlan moves items[from] to position to and returns a write for every
// item between the two positions inclusive. Each gets its new 0-based index
// as display_order, the same numbering linking appends with; items outside
// the range are untouched.
func ReorderPlan(items []OrderedRecipe, from, to int) ([]OrderUpdate, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, ErrInvalidPosition
	}
	if from == to {
		return []OrderUpdate{}, nil
	}

	moved := moveItem(items, from, to)
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}

	updates := make([]OrderUpdate, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		updates = append(updates, OrderUpdate{RecipeID: moved[i].RecipeID, DisplayOrder: i})
	}
	return updates, nil
}

func moveItem(items []OrderedRecipe, from, to int) []OrderedRecipe {
	out := make([]OrderedRecipe, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)

	item := items[from]
	out = append(out[:to], append([]OrderedRecipe{item}, out[to:]...)...)
	return out
}

// OrderStore loads and persists a group's recipe order.
type OrderStore interface {
	LoadOrder(ctx context.Context) ([]OrderedRecipe, error)
	SetDisplayOrder(ctx context.Context, recipeID string, order int) error
}

// RecipeTable holds a locally ordered copy of a group's recipes.
type RecipeTable struct {
	store OrderStore

	mu     sync.Mutex
	items  []OrderedRecipe
	search string
}

func NewRecipeTable(ctx context.Context, store OrderStore) (*RecipeTable, error) {
	t := &RecipeTable{store: store}
	if err := t.Refresh(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Items returns a copy of the full, unfiltered order.
func (t *RecipeTable) Items() []OrderedRecipe {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]OrderedRecipe(nil), t.items...)
}

func (t *RecipeTable) SetSearch(search string) {
	t.mu.Lock()
	t.search = strings.TrimSpace(search)
	t.mu.Unlock()
}

// Visible returns the rows matching the search filter.
func (t *RecipeTable) Visible() []OrderedRecipe {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.search == "" {
		return append([]OrderedRecipe(nil), t.items...)
	}
	needle := strings.ToLower(t.search)
	out := make([]OrderedRecipe, 0, len(t.items))
	for _, item := range t.items {
		if strings.Contains(strings.ToLower(item.RecipeName), needle) ||
			strings.Contains(strings.ToLower(item.GuestName), needle) {
			out = append(out, item)
		}
	}
	return out
}

// Refresh replaces the local order with the stored one.
func (t *RecipeTable) Refresh(ctx context.Context) error {
	items, err := t.store.LoadOrder(ctx)
	if err != nil {
		return fmt.Errorf("load recipe order: %w", err)
	}
	t.mu.Lock()
	t.items = items
	t.mu.Unlock()
	return nil
}

// Move applies the new order locally first, then persists every write of
// the plan concurrently. If any write fails the local order is discarded and
// reloaded from the store.
func (t *RecipeTable) Move(ctx context.Context, from, to int) error {
	t.mu.Lock()
	if t.search != "" {
		t.mu.Unlock()
		return ErrReorderWhileFiltered
	}
	updates, err := ReorderPlan(t.items, from, to)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if len(updates) == 0 {
		t.mu.Unlock()
		return nil
	}
	t.items = moveItem(t.items, from, to)
	for _, u := range updates {
		t.items[u.DisplayOrder].DisplayOrder = u.DisplayOrder
	}
	t.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOrderWrites)
	for _, u := range updates {
		g.Go(func() error {
			return t.store.SetDisplayOrder(gctx, u.RecipeID, u.DisplayOrder)
		})
	}
	if err := g.Wait(); err != nil {
		if refreshErr := t.Refresh(context.WithoutCancel(ctx)); refreshErr != nil {
			return errors.Join(fmt.Errorf("persist order: %w", err), refreshErr)
		}
		return fmt.Errorf("persist order: %w", err)
	}
	return nil
}

// groupOrderStore keeps a group's order in its shared cookbook.
type groupOrderStore struct {
	db         *gorm.DB
	groupID    string
	cookbookID string
	userID     string
}

func (s *groupOrderStore) LoadOrder(ctx context.Context) ([]OrderedRecipe, error) {
	type row struct {
		RecipeID     string
		RecipeName   string
		FirstName    string
		LastName     string
		PrintedName  *string
		DisplayOrder int
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("group_recipes AS gr").
		Select(`r.id AS recipe_id, r.recipe_name, g.first_name, g.last_name, g.printed_name,
			COALESCE(cr.display_order, 0) AS display_order`).
		Joins("JOIN guest_recipes r ON r.id = gr.recipe_id").
		Joins("JOIN guests g ON g.id = r.guest_id").
		Joins("LEFT JOIN cookbook_recipes cr ON cr.recipe_id = r.id AND cr.cookbook_id = ?", s.cookbookID).
		Where("gr.group_id = ? AND gr.removed_at IS NULL", s.groupID).
		Order("display_order ASC").
		Order("gr.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]OrderedRecipe, 0, len(rows))
	for _, r := range rows {
		guest := db.Guest{FirstName: r.FirstName, LastName: r.LastName, PrintedName: r.PrintedName}
		items = append(items, OrderedRecipe{
			RecipeID:     r.RecipeID,
			RecipeName:   r.RecipeName,
			GuestName:    guest.DisplayName(),
			DisplayOrder: r.DisplayOrder,
		})
	}
	return items, nil
}

func (s *groupOrderStore) SetDisplayOrder(ctx context.Context, recipeID string, order int) error {
	res := s.db.WithContext(ctx).Model(&db.CookbookRecipe{}).
		Where("cookbook_id = ? AND recipe_id = ?", s.cookbookID, recipeID).
		Update("display_order", order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&db.CookbookRecipe{
		CookbookID:   s.cookbookID,
		RecipeID:     recipeID,
		UserID:       s.userID,
		DisplayOrder: order,
	}).Error
}

// GroupRecipeService exposes a group's ordered recipe table to its members.
type GroupRecipeService struct {
	db *gorm.DB
}

func NewGroupRecipeService(gdb *gorm.DB) *GroupRecipeService {
	return &GroupRecipeService{db: gdb}
}

func (s *GroupRecipeService) table(ctx context.Context, userID, groupID string) (*RecipeTable, error) {
	member, err := isGroupMember(s.db.WithContext(ctx), groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrGroupAccessDenied
	}

	var cookbook *db.Cookbook
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cookbook, err = groupCookbook(tx, groupID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return NewRecipeTable(ctx, &groupOrderStore{db: s.db, groupID: groupID, cookbookID: cookbook.ID, userID: userID})
}

// List returns the group's recipes in display order, filtered by search.
func (s *GroupRecipeService) List(ctx context.Context, userID, groupID, search string) ([]OrderedRecipe, error) {
	t, err := s.table(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	t.SetSearch(search)
	return t.Visible(), nil
}

// Reorder moves one recipe and returns the resulting order. On failure the
// returned order is the re-fetched stored one.
func (s *GroupRecipeService) Reorder(ctx context.Context, userID, groupID string, from, to int, search string) ([]OrderedRecipe, error) {
	t, err := s.table(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	t.SetSearch(search)
	if err := t.Move(ctx, from, to); err != nil {
		return t.Items(), err
	}
	return t.Items(), nil
}
