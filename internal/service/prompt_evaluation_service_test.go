package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallplates/internal/db"
)

func TestPromptEvaluationSaveOverwrites(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPromptEvaluationService(gdb)
	ctx := context.Background()

	owner := createProfile(t, gdb, "host", "tok", true)
	guest := createGuest(t, gdb, owner.ID, "Ana", "Gomez", nil)
	recipe := createRecipe(t, gdb, owner.ID, guest.ID, "Flan")

	latest, err := svc.Latest(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	eval, created, err := svc.Save(ctx, PromptEvaluationInput{
		RecipeID:   recipe.ID,
		Rating:     2,
		WhatFailed: stringPtr("plate too busy"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, eval.WasEdited)

	edited := true
	again, created, err := svc.Save(ctx, PromptEvaluationInput{
		RecipeID:     recipe.ID,
		Rating:       5,
		WasEdited:    &edited,
		EditedPrompt: stringPtr("flan on a clay plate, overhead"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, eval.ID, again.ID)
	assert.Nil(t, again.WhatFailed, "fields absent from the input are cleared")

	latest, err = svc.Latest(ctx, recipe.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 5, latest.Rating)
	assert.True(t, latest.WasEdited)

	var count int64
	require.NoError(t, gdb.Model(&db.PromptEvaluation{}).Where("recipe_id = ?", recipe.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPromptEvaluationSaveRejects(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPromptEvaluationService(gdb)
	ctx := context.Background()

	_, _, err := svc.Save(ctx, PromptEvaluationInput{RecipeID: "missing", Rating: 3})
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	for _, rating := range []int{0, 6} {
		_, _, err = svc.Save(ctx, PromptEvaluationInput{RecipeID: "r", Rating: rating})
		assert.ErrorIs(t, err, ErrValidation)
	}

	_, err = svc.Latest(ctx, " ")
	assert.ErrorIs(t, err, ErrValidation)
}
