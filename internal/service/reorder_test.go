package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallplates/internal/db"
)

func orderedItems(n int) []OrderedRecipe {
	items := make([]OrderedRecipe, n)
	for i := range items {
		items[i] = OrderedRecipe{RecipeID: fmt.Sprintf("r%d", i), RecipeName: fmt.Sprintf("Recipe %d", i), DisplayOrder: i}
	}
	return items
}

func TestReorderPlanRewritesContiguousRange(t *testing.T) {
	items := orderedItems(6)

	updates, err := ReorderPlan(items, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []OrderUpdate{
		{RecipeID: "r4", DisplayOrder: 1},
		{RecipeID: "r1", DisplayOrder: 2},
		{RecipeID: "r2", DisplayOrder: 3},
		{RecipeID: "r3", DisplayOrder: 4},
	}, updates)
	assert.Equal(t, "r4", items[4].RecipeID, "input is not modified")

	updates, err = ReorderPlan(items, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []OrderUpdate{
		{RecipeID: "r1", DisplayOrder: 0},
		{RecipeID: "r2", DisplayOrder: 1},
		{RecipeID: "r0", DisplayOrder: 2},
	}, updates)

	updates, err = ReorderPlan(items, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, updates)

	_, err = ReorderPlan(items, -1, 2)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = ReorderPlan(items, 0, 6)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

// memoryOrderStore keeps order in a map; failOn makes one write fail.
type memoryOrderStore struct {
	mu     sync.Mutex
	items  []OrderedRecipe
	writes map[string]int
	failOn string
	loads  int
}

func newMemoryOrderStore(n int) *memoryOrderStore {
	return &memoryOrderStore{items: orderedItems(n), writes: map[string]int{}}
}

func (s *memoryOrderStore) LoadOrder(context.Context) ([]OrderedRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return append([]OrderedRecipe(nil), s.items...), nil
}

func (s *memoryOrderStore) SetDisplayOrder(_ context.Context, recipeID string, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recipeID == s.failOn {
		return errors.New("write refused")
	}
	s.writes[recipeID] = order
	return nil
}

func ids(items []OrderedRecipe) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.RecipeID
	}
	return out
}

func TestRecipeTableMovePersistsPlan(t *testing.T) {
	ctx := context.Background()
	store := newMemoryOrderStore(6)
	table, err := NewRecipeTable(ctx, store)
	require.NoError(t, err)

	require.NoError(t, table.Move(ctx, 4, 1))
	assert.Equal(t, []string{"r0", "r4", "r1", "r2", "r3", "r5"}, ids(table.Items()))
	assert.Equal(t, map[string]int{"r4": 1, "r1": 2, "r2": 3, "r3": 4}, store.writes)
	for i, item := range table.Items() {
		assert.Equal(t, i, item.DisplayOrder, item.RecipeID)
	}
	assert.Equal(t, 1, store.loads)
}

func TestRecipeTableMoveFailureReloads(t *testing.T) {
	ctx := context.Background()
	store := newMemoryOrderStore(4)
	store.failOn = "r2"
	table, err := NewRecipeTable(ctx, store)
	require.NoError(t, err)

	err = table.Move(ctx, 3, 0)
	require.Error(t, err)
	assert.Equal(t, 2, store.loads)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, ids(table.Items()), "optimistic order is discarded")
}

func TestRecipeTableRefusesMoveWhileFiltered(t *testing.T) {
	ctx := context.Background()
	store := newMemoryOrderStore(3)
	table, err := NewRecipeTable(ctx, store)
	require.NoError(t, err)

	table.SetSearch("recipe 1")
	assert.Equal(t, []string{"r1"}, ids(table.Visible()))
	assert.ErrorIs(t, table.Move(ctx, 0, 2), ErrReorderWhileFiltered)
	assert.Empty(t, store.writes)

	table.SetSearch("  ")
	assert.Len(t, table.Visible(), 3)
}

func TestGroupRecipeServiceReorder(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewGroupRecipeService(gdb)
	ctx := context.Background()

	owner := createProfile(t, gdb, "host", "tok", true)
	outsider := createProfile(t, gdb, "outsider", "", false)
	group := createGroup(t, gdb, "Wedding", owner.ID)

	names := []string{"Arroz", "Birria", "Chiles", "Dulce"}
	for _, name := range names {
		guest := createGuest(t, gdb, owner.ID, name+"-guest", "", nil)
		recipe := createRecipe(t, gdb, owner.ID, guest.ID, name)
		require.NoError(t, gdb.Create(&db.GroupRecipe{GroupID: group.ID, RecipeID: recipe.ID, AddedBy: owner.ID}).Error)
	}

	items, err := svc.List(ctx, owner.ID, group.ID, "")
	require.NoError(t, err)
	require.Len(t, items, 4)

	items, err = svc.Reorder(ctx, owner.ID, group.ID, 3, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "Dulce", items[0].RecipeName)

	reloaded, err := svc.List(ctx, owner.ID, group.ID, "")
	require.NoError(t, err)
	got := make([]string, len(reloaded))
	for i, item := range reloaded {
		got[i] = item.RecipeName
		assert.Equal(t, i, item.DisplayOrder, item.RecipeName)
	}
	assert.Equal(t, []string{"Dulce", "Arroz", "Birria", "Chiles"}, got)

	filtered, err := svc.List(ctx, owner.ID, group.ID, "birria")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Birria-guest", filtered[0].GuestName)

	_, err = svc.Reorder(ctx, owner.ID, group.ID, 0, 1, "birria")
	assert.ErrorIs(t, err, ErrReorderWhileFiltered)

	_, err = svc.List(ctx, outsider.ID, group.ID, "")
	assert.ErrorIs(t, err, ErrGroupAccessDenied)
}
