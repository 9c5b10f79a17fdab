package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/service"
)

// ListOperationsRecipes 返回后台生产列表，状态按读取时的标志实时推导。
func (a *API) ListOperationsRecipes(c *gin.Context) {
	result, err := a.operations.List(c.Request.Context(), service.OperationsFilter{
		Status:       c.Query("status"),
		CookbookID:   c.Query("cookbook_id"),
		UserID:       c.Query("user_id"),
		GuestID:      c.Query("guest_id"),
		NeedsReview:  queryBoolPtr(c, "needs_review"),
		HideArchived: c.Query("hide_archived") == "true",
		NotifyOptIn:  c.Query("notify_opt_in") == "true",
		Search:       c.Query("search"),
		SortByStatus: c.Query("sort") == "status",
		Page:         queryInt(c, "page", 1),
		PerPage:      queryInt(c, "per_page", 50),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to list recipes")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) GetOperationsRecipe(c *gin.Context) {
	detail, err := a.operations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load recipe")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateProductionStatus applies a partial flag update.
func (a *API) UpdateProductionStatus(c *gin.Context) {
	var patch service.StatusPatch
	if !bindJSON(c, &patch, "invalid production status") {
		return
	}

	status, err := a.operations.UpdateStatus(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		a.respondServiceError(c, err, "failed to update production status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"production_status": status,
		"calculated_status": service.DeriveProductionStatus(service.ProductionFlags{
			TextFinalized:  status.TextFinalizedInIndesign,
			ImageGenerated: status.ImageGenerated,
			ImagePlaced:    status.ImagePlacedInIndesign,
			NeedsReview:    status.NeedsReview,
		}),
	})
}

func (a *API) MarkRecipeReviewed(c *gin.Context) {
	status, err := a.operations.MarkReviewed(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err, "failed to mark recipe reviewed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"production_status": status})
}

// EditRecipeContent 修改菜谱正文或排版用的清洗文本。
func (a *API) EditRecipeContent(c *gin.Context) {
	var edit service.ContentEdit
	if !bindJSON(c, &edit, "invalid recipe content") {
		return
	}

	result, err := a.operations.EditContent(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		a.respondServiceError(c, err, "failed to update recipe content")
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadGeneratedImage 上传成品菜品图，字段名为 image。
func (a *API) UploadGeneratedImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "image file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not read image")
		return
	}
	defer f.Close()

	url, err := a.operations.UploadGeneratedImage(c.Request.Context(), c.Param("id"), service.GeneratedImage{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to upload image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated_image_url": url})
}

// GeneratePrompt runs the prompt agent synchronously for one recipe.
func (a *API) GeneratePrompt(c *gin.Context) {
	result, err := a.prompts.GenerateForRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		if _, known := errorStatus(err); known {
			a.respondServiceError(c, err, "")
			return
		}
		if errors.Is(err, service.ErrAgentMissingPrompt) {
			respondError(c, http.StatusBadGateway, err.Error())
			return
		}
		_ = c.Error(err)
		a.log.Warn("prompt generation failed", "recipe_id", c.Param("id"), "error", err)
		respondError(c, http.StatusBadGateway, "prompt agent request failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generated_prompt": result.GeneratedPrompt,
		"dish_category":    result.DishCategory,
		"print_ready":      result.PrintReady,
		"duration_ms":      result.Duration.Milliseconds(),
	})
}

func (a *API) OperationsStats(c *gin.Context) {
	stats, err := a.operations.Stats(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetPromptEvaluation 返回某菜谱最新的提示词评估。
func (a *API) GetPromptEvaluation(c *gin.Context) {
	eval, err := a.evaluations.Latest(c.Request.Context(), c.Query("recipe_id"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load evaluation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluation": eval})
}

func (a *API) SavePromptEvaluation(c *gin.Context) {
	var input service.PromptEvaluationInput
	if !bindJSON(c, &input, "invalid evaluation") {
		return
	}

	eval, created, err := a.evaluations.Save(c.Request.Context(), input)
	if err != nil {
		a.respondServiceError(c, err, "failed to save evaluation")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"evaluation": eval})
}
