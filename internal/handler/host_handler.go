package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/middleware"
	"github.com/smallplates/internal/service"
)

// ListGuests 返回主办方的宾客列表。
func (a *API) ListGuests(c *gin.Context) {
	result, err := a.guests.List(c.Request.Context(), middleware.UserID(c), service.GuestFilter{
		Search:          c.Query("search"),
		IncludeArchived: c.Query("include_archived") == "true",
		Page:            queryInt(c, "page", 1),
		PerPage:         queryInt(c, "per_page", 50),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to list guests")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) ArchiveGuest(c *gin.Context) {
	if err := a.guests.Archive(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		a.respondServiceError(c, err, "failed to archive guest")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "guest archived"})
}

func (a *API) RestoreGuest(c *gin.Context) {
	if err := a.guests.Restore(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		a.respondServiceError(c, err, "failed to restore guest")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "guest restored"})
}

// GetCollectionSettings 返回收集链接设置。
func (a *API) GetCollectionSettings(c *gin.Context) {
	settings, err := a.collections.Settings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to load collection settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// RegenerateCollectionToken invalidates the current link.
func (a *API) RegenerateCollectionToken(c *gin.Context) {
	token, err := a.collections.RegenerateToken(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to regenerate link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type collectionEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (a *API) SetCollectionEnabled(c *gin.Context) {
	var payload collectionEnabledRequest
	if !bindJSON(c, &payload, "enabled is required") {
		return
	}
	if payload.Enabled == nil {
		respondError(c, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := a.collections.SetEnabled(c.Request.Context(), middleware.UserID(c), *payload.Enabled); err != nil {
		a.respondServiceError(c, err, "failed to update collection settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *payload.Enabled})
}

// ListGroupRecipes 返回群组菜谱的排序列表，search 仅过滤展示。
func (a *API) ListGroupRecipes(c *gin.Context) {
	items, err := a.groups.List(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Query("search"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load group recipes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type reorderRequest struct {
	From   *int   `json:"from"`
	To     *int   `json:"to"`
	Search string `json:"search"`
}

// ReorderGroupRecipes moves one recipe. On a failed write the response still
// carries the stored order so the client can redraw.
func (a *API) ReorderGroupRecipes(c *gin.Context) {
	var payload reorderRequest
	if !bindJSON(c, &payload, "from and to are required") {
		return
	}
	if payload.From == nil || payload.To == nil {
		respondError(c, http.StatusBadRequest, "from and to are required")
		return
	}

	items, err := a.groups.Reorder(c.Request.Context(), middleware.UserID(c), c.Param("id"),
		*payload.From, *payload.To, strings.TrimSpace(payload.Search))
	if err != nil {
		status, known := errorStatus(err)
		message := err.Error()
		if !known {
			_ = c.Error(err)
			message = "failed to save the new order"
		}
		c.JSON(status, gin.H{"error": message, "items": items})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
