package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/service"
	"github.com/smallplates/internal/storage"
)

// GetCollection 返回收集链接对应的主办方信息。
func (a *API) GetCollection(c *gin.Context) {
	info, err := a.collections.ValidateToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": info})
}

type guestCandidate struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PrintedName *string `json:"printed_name"`
}

// SearchCollectionGuests lists the guests a submitter may be, first match first.
func (a *API) SearchCollectionGuests(c *gin.Context) {
	ctx := c.Request.Context()
	info, err := a.collections.ValidateToken(ctx, c.Param("token"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load collection")
		return
	}

	guests, err := a.guests.Search(ctx, service.GuestLookup{
		OwnerID:   info.UserID,
		FirstName: c.Query("first_name"),
		LastName:  c.Query("last_name"),
		GroupID:   c.Query("group_id"),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to search guests")
		return
	}

	items := make([]guestCandidate, 0, len(guests))
	for _, g := range guests {
		items = append(items, guestCandidate{ID: g.ID, FirstName: g.FirstName, LastName: g.LastName, PrintedName: g.PrintedName})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SubmitRecipe 接收宾客通过收集链接提交的菜谱（multipart 表单）。
func (a *API) SubmitRecipe(c *gin.Context) {
	req := service.SubmissionRequest{
		Token:        c.Param("token"),
		FirstName:    c.PostForm("first_name"),
		LastName:     c.PostForm("last_name"),
		Email:        c.PostForm("email"),
		Phone:        c.PostForm("phone"),
		PrintedName:  c.PostForm("printed_name"),
		RecipeName:   c.PostForm("recipe_name"),
		Ingredients:  c.PostForm("ingredients"),
		Instructions: c.PostForm("instructions"),
		Comments:     c.PostForm("comments"),
		RawText:      c.PostForm("raw_text"),
		UploadMethod: c.PostForm("upload_method"),
		GroupID:      c.PostForm("group_id"),
		CookbookID:   c.PostForm("cookbook_id"),
	}

	files, closeFiles, err := openUploads(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not read uploaded files")
		return
	}
	defer closeFiles()
	req.Files = files

	result, err := a.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		var subErr *service.SubmissionError
		if !errors.As(err, &subErr) {
			a.respondServiceError(c, err, "failed to submit recipe")
			return
		}
		status, known := errorStatus(subErr.Err)
		if !known || (subErr.Stage != service.StageValidate && subErr.Stage != service.StageToken) {
			status = http.StatusInternalServerError
			_ = c.Error(err)
		}
		respondError(c, status, subErr.UserMessage())
		return
	}
	c.JSON(http.StatusCreated, result)
}

// openUploads opens every file of the "files" (or "files[]") form field.
// The returned func closes them.
func openUploads(c *gin.Context) ([]storage.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, err
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["files[]"]
	}

	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, err
		}
		opened = append(opened, f)
		uploads = append(uploads, storage.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

type notificationRequest struct {
	OptIn *bool   `json:"notify_opt_in"`
	Email *string `json:"notify_email"`
}

func (r notificationRequest) prefs() service.NotificationPrefs {
	return service.NotificationPrefs{OptIn: r.OptIn, Email: r.Email}
}

// UpdateRecipeNotification 保存宾客对单个菜谱的通知偏好。
func (a *API) UpdateRecipeNotification(c *gin.Context) {
	var payload notificationRequest
	if !bindJSON(c, &payload, "invalid notification preferences") {
		return
	}

	ctx := c.Request.Context()
	info, err := a.collections.ValidateToken(ctx, c.Param("token"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load collection")
		return
	}
	recipe, err := a.recipes.Get(ctx, c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load recipe")
		return
	}
	if recipe.UserID != info.UserID {
		a.respondServiceError(c, service.ErrRecipeNotFound, "")
		return
	}

	if err := a.recipes.UpdateNotification(ctx, recipe.ID, payload.prefs()); err != nil {
		a.respondServiceError(c, err, "failed to save notification preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification preferences saved"})
}

// UpdateGuestNotification 保存宾客级别的通知偏好。
func (a *API) UpdateGuestNotification(c *gin.Context) {
	var payload notificationRequest
	if !bindJSON(c, &payload, "invalid notification preferences") {
		return
	}

	ctx := c.Request.Context()
	info, err := a.collections.ValidateToken(ctx, c.Param("token"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load collection")
		return
	}
	guest, err := a.guests.Get(ctx, c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err, "failed to load guest")
		return
	}
	if guest.UserID != info.UserID {
		a.respondServiceError(c, service.ErrGuestNotFound, "")
		return
	}

	if err := a.guests.UpdateNotification(ctx, guest.ID, payload.prefs()); err != nil {
		a.respondServiceError(c, err, "failed to save notification preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification preferences saved"})
}

// LinkRecipe adds a submitted recipe to a cookbook; the collection token
// authorises the call.
func (a *API) LinkRecipe(c *gin.Context) {
	var payload service.LinkRequest
	if !bindJSON(c, &payload, "invalid link request") {
		return
	}

	result, err := a.links.LinkRecipe(c.Request.Context(), payload)
	if err != nil {
		a.respondServiceError(c, err, "failed to add recipe to cookbook")
		return
	}

	message := "recipe added to cookbook"
	if result.AlreadyLinked {
		message = "recipe already in cookbook"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "result": result})
}
