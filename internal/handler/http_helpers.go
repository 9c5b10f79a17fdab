package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/service"
	"github.com/smallplates/internal/storage"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// errorStatus maps service sentinels to HTTP statuses. ok is false for
// unexpected errors.
func errorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidUploadMethod),
		errors.Is(err, service.ErrRecipeContentMissing),
		errors.Is(err, service.ErrLinkTargetMissing),
		errors.Is(err, service.ErrInvalidStatusFilter),
		errors.Is(err, service.ErrInvalidPosition),
		errors.Is(err, service.ErrUnsupportedImage),
		errors.Is(err, service.ErrRecipeHasNoGroup),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrTooManyFiles),
		errors.Is(err, storage.ErrEmptyFile):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrImageTooLarge),
		errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrTotalTooLarge):
		return http.StatusRequestEntityTooLarge, true
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrRecipeNotFound),
		errors.Is(err, service.ErrGuestNotFound),
		errors.Is(err, service.ErrCookbookNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrProductionStatusNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrCollectionDisabled),
		errors.Is(err, service.ErrGroupAccessDenied),
		errors.Is(err, service.ErrCookbookForbidden),
		errors.Is(err, service.ErrRecipeNotOwned):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrReorderWhileFiltered):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrAgentDisabled):
		return http.StatusServiceUnavailable, true
	}
	return http.StatusInternalServerError, false
}

// respondServiceError writes a known error's own message, or fallback for
// anything unexpected, which is logged.
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	status, known := errorStatus(err)
	if !known {
		_ = c.Error(err)
		a.log.Error("request failed", "path", c.FullPath(), "error", err)
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryBoolPtr returns nil when the parameter is absent or not a boolean.
func queryBoolPtr(c *gin.Context, key string) *bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
