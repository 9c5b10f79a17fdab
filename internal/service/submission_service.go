package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
	"github.com/smallplates/internal/storage"
)

// Placement decides whether files reach their final path before or after the
// recipe row exists.
type Placement int

const (
	// PlacementStagedFirst moves files under a tmp- recipe id, then inserts
	// the recipe with its URLs already set.
	PlacementStagedFirst Placement = iota
	// PlacementRecordFirst inserts the recipe, moves files under its real id
	// and attaches the URLs with a second update.
	PlacementRecordFirst
)

func (p Placement) String() string {
	if p == PlacementRecordFirst {
		return "record_first"
	}
	return "staged_first"
}

// ParsePlacement accepts the String form of a placement.
func ParsePlacement(raw string) (Placement, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "staged_first":
		return PlacementStagedFirst, true
	case "record_first":
		return PlacementRecordFirst, true
	}
	return PlacementStagedFirst, false
}

// SubmissionStage names the step a submission failed at.
type SubmissionStage string

const (
	StageValidate SubmissionStage = "validate"
	StageToken    SubmissionStage = "token"
	StageStage    SubmissionStage = "stage"
	StageGuest    SubmissionStage = "guest"
	StageMove     SubmissionStage = "move"
	StageRecipe   SubmissionStage = "recipe"
)

const genericSubmissionMessage = "We couldn't save your recipe. Please try again."

// SubmissionError wraps the cause of a failed submission with its stage.
type SubmissionError struct {
	Stage SubmissionStage
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed at %s: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// UserMessage is safe to show the submitter. Only validation failures and
// rejected links carry their cause; everything else is generic.
func (e *SubmissionError) UserMessage() string {
	switch {
	case e.Stage == StageValidate:
		return e.Err.Error()
	case e.Stage == StageToken && (errors.Is(e.Err, ErrInvalidToken) || errors.Is(e.Err, ErrCollectionDisabled)):
		return e.Err.Error()
	default:
		return genericSubmissionMessage
	}
}

// SubmissionRequest is one guest submission received through a collection link.
type SubmissionRequest struct {
	Token        string           `json:"token" validate:"required"`
	FirstName    string           `json:"first_name" validate:"required,max=120"`
	LastName     string           `json:"last_name" validate:"max=120"`
	Email        string           `json:"email" validate:"omitempty,email,max=255"`
	Phone        string           `json:"phone" validate:"max=50"`
	PrintedName  string           `json:"printed_name" validate:"max=255"`
	RecipeName   string           `json:"recipe_name" validate:"required,max=255"`
	Ingredients  string           `json:"ingredients"`
	Instructions string           `json:"instructions"`
	Comments     string           `json:"comments"`
	RawText      string           `json:"raw_text"`
	UploadMethod string           `json:"upload_method"`
	GroupID      string           `json:"group_id"`
	CookbookID   string           `json:"cookbook_id"`
	Files        []storage.Upload `json:"-"`
}

type SubmissionResult struct {
	GuestID             string   `json:"guest_id"`
	GuestCreated        bool     `json:"guest_created"`
	RecipeID            string   `json:"recipe_id"`
	FileURLs            []string `json:"file_urls"`
	Placement           string   `json:"placement"`
	StoragePathRecipeID string   `json:"storage_path_recipe_id,omitempty"`
	GuestNotifyOptIn    bool     `json:"guest_notify_opt_in"`
	GuestNotifyEmail    *string  `json:"guest_notify_email"`
}

// SubmissionDeps wires the collaborators of the orchestrator. Prompts and
// Linker are optional.
type SubmissionDeps struct {
	Collections *CollectionService
	Guests      *GuestService
	Recipes     *RecipeService
	Stager      *storage.Stager
	Mover       *storage.Mover
	Prompts     PromptGenerator
	Linker      *LinkService
	Tasks       TaskRunner
	Placement   Placement
	Logger      *slog.Logger
}

// SubmissionService 编排一次宾客提交：校验、暂存文件、确定宾客、落盘、建档，
// 以及后续的尽力而为任务。
type SubmissionService struct {
	collections *CollectionService
	guests      *GuestService
	recipes     *RecipeService
	stager      *storage.Stager
	mover       *storage.Mover
	prompts     PromptGenerator
	linker      *LinkService
	tasks       TaskRunner
	placement   Placement
	log         *slog.Logger
	newTempID   func() string
}

func NewSubmissionService(deps SubmissionDeps) *SubmissionService {
	log := logger.OrDefault(deps.Logger, "submissions")
	tasks := deps.Tasks
	if tasks == nil {
		tasks = NewInlineRunner(log)
	}
	return &SubmissionService{
		collections: deps.Collections,
		guests:      deps.Guests,
		recipes:     deps.Recipes,
		stager:      deps.Stager,
		mover:       deps.Mover,
		prompts:     deps.Prompts,
		linker:      deps.Linker,
		tasks:       tasks,
		placement:   deps.Placement,
		log:         log,
		newTempID:   func() string { return "tmp-" + uuid.NewString() },
	}
}

func fail(stage SubmissionStage, err error) error {
	return &SubmissionError{Stage: stage, Err: err}
}

// Submit runs the submission pipeline. Validation and token failures have no
// side effects. Later failures clean up staged files; a recipe insert failing
// after a staged-first move leaves the final files orphaned.
func (s *SubmissionService) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	req = trimSubmission(req)
	method, err := s.validate(req)
	if err != nil {
		return nil, fail(StageValidate, err)
	}

	info, err := s.collections.ValidateToken(ctx, req.Token)
	if err != nil {
		return nil, fail(StageToken, err)
	}
	ownerID := info.UserID
	log := s.log.With("owner_id", ownerID)

	var session *storage.StagingSession
	if len(req.Files) > 0 {
		session, err = s.stager.Stage(ctx, req.Files)
		if err != nil {
			log.Error("stage files", "error", err)
			return nil, fail(StageStage, err)
		}
	}
	cleanup := func() {
		if session == nil {
			return
		}
		if err := s.stager.Cleanup(context.WithoutCancel(ctx), session.ID); err != nil {
			log.Warn("cleanup staging", "session", session.ID, "error", err)
		}
	}

	guest, created, err := s.resolveGuest(ctx, ownerID, req)
	if err != nil {
		cleanup()
		log.Error("resolve guest", "error", err)
		return nil, fail(StageGuest, err)
	}
	log = log.With("guest_id", guest.ID)

	input := NewRecipe{
		OwnerID:      ownerID,
		GuestID:      guest.ID,
		GroupID:      req.GroupID,
		RecipeName:   req.RecipeName,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
		Comments:     req.Comments,
		RawText:      req.RawText,
		UploadMethod: method,
		FileCount:    len(req.Files),
	}

	var (
		recipe      *db.Recipe
		rawFallback bool
		urls        = []string{}
		pathID      string
	)
	switch s.placement {
	case PlacementRecordFirst:
		recipe, rawFallback, err = s.recipes.Create(ctx, input)
		if err != nil {
			cleanup()
			log.Error("create recipe", "error", err)
			return nil, fail(StageRecipe, err)
		}
		pathID = recipe.ID
		if session != nil {
			urls, err = s.mover.Finalize(ctx, storage.FinalizeRequest{OwnerID: ownerID, GuestID: guest.ID, RecipeID: pathID, Session: session})
			if err != nil {
				cleanup()
				log.Error("move files", "recipe_id", recipe.ID, "error", err)
				return nil, fail(StageMove, err)
			}
			if err := s.recipes.AttachDocuments(ctx, recipe.ID, urls); err != nil {
				log.Error("attach documents, final files orphaned", "recipe_id", recipe.ID, "orphaned", urls, "error", err)
				return nil, fail(StageRecipe, err)
			}
			recipe.DocumentURLs = urls
		}
	default:
		if session != nil {
			pathID = s.newTempID()
			urls, err = s.mover.Finalize(ctx, storage.FinalizeRequest{OwnerID: ownerID, GuestID: guest.ID, RecipeID: pathID, Session: session})
			if err != nil {
				cleanup()
				log.Error("move files", "path_recipe_id", pathID, "error", err)
				return nil, fail(StageMove, err)
			}
		}
		input.DocumentURLs = urls
		recipe, rawFallback, err = s.recipes.Create(ctx, input)
		if err != nil {
			cleanup()
			// TODO: delete storage.RecipePrefix(owner, guest, pathID) here once
			// hosts agree that a failed insert should discard the upload.
			log.Error("create recipe, final files orphaned", "path_recipe_id", pathID, "orphaned", urls, "error", err)
			return nil, fail(StageRecipe, err)
		}
	}
	cleanup()

	log.Info("recipe submitted",
		"recipe_id", recipe.ID,
		"method", method,
		"files", len(urls),
		"guest_created", created,
		"placement", s.placement.String(),
	)

	if method == db.UploadMethodText && !rawFallback {
		s.enqueuePrompt(ctx, recipe.ID)
	}
	if req.GroupID != "" || req.CookbookID != "" {
		s.enqueueLink(req, recipe.ID)
	}

	return &SubmissionResult{
		GuestID:             guest.ID,
		GuestCreated:        created,
		RecipeID:            recipe.ID,
		FileURLs:            urls,
		Placement:           s.placement.String(),
		StoragePathRecipeID: pathID,
		GuestNotifyOptIn:    guest.NotifyOptIn,
		GuestNotifyEmail:    guest.NotifyEmail,
	}, nil
}

func trimSubmission(req SubmissionRequest) SubmissionRequest {
	req.Token = strings.TrimSpace(req.Token)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.PrintedName = strings.TrimSpace(req.PrintedName)
	req.RecipeName = strings.TrimSpace(req.RecipeName)
	req.GroupID = strings.TrimSpace(req.GroupID)
	req.CookbookID = strings.TrimSpace(req.CookbookID)
	return req
}

// validate checks everything that can be checked without I/O.
func (s *SubmissionService) validate(req SubmissionRequest) (string, error) {
	if err := validateStruct(req); err != nil {
		return "", err
	}
	method, err := normalizeUploadMethod(req.UploadMethod)
	if err != nil {
		return "", newValidationError(err.Error())
	}
	if method != db.UploadMethodText && len(req.Files) == 0 {
		return "", newValidationError(fmt.Sprintf("at least one file is required for %s uploads", method))
	}
	if method == db.UploadMethodText {
		if _, err := s.recipes.resolveContent(NewRecipe{
			Ingredients:  req.Ingredients,
			Instructions: req.Instructions,
			RawText:      req.RawText,
			UploadMethod: method,
		}); err != nil {
			return "", newValidationError(err.Error())
		}
	}
	if err := storage.ValidateUploads(req.Files, method == db.UploadMethodAudio); err != nil {
		return "", newValidationError(err.Error())
	}
	return method, nil
}

func (s *SubmissionService) resolveGuest(ctx context.Context, ownerID string, req SubmissionRequest) (*db.Guest, bool, error) {
	guest, err := s.guests.Resolve(ctx, GuestLookup{
		OwnerID:   ownerID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		GroupID:   req.GroupID,
	})
	switch {
	case err == nil:
		if err := s.guests.PrepareForRecipe(ctx, guest); err != nil {
			return nil, false, err
		}
		return guest, false, nil
	case errors.Is(err, ErrGuestNotFound):
		guest, err = s.guests.Create(ctx, NewGuest{
			OwnerID:     ownerID,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			Phone:       req.Phone,
			PrintedName: req.PrintedName,
			GroupID:     req.GroupID,
		})
		if err != nil {
			return nil, false, err
		}
		return guest, true, nil
	default:
		return nil, false, err
	}
}

func (s *SubmissionService) enqueuePrompt(ctx context.Context, recipeID string) {
	if s.prompts == nil || !s.prompts.Enabled(ctx) {
		return
	}
	prompts := s.prompts
	s.tasks.Enqueue("generate-prompt:"+recipeID, func(ctx context.Context) error {
		_, err := prompts.GenerateForRecipe(ctx, recipeID)
		return err
	})
}

func (s *SubmissionService) enqueueLink(req SubmissionRequest, recipeID string) {
	if s.linker == nil {
		return
	}
	linker := s.linker
	link := LinkRequest{Token: req.Token, RecipeID: recipeID, CookbookID: req.CookbookID, GroupID: req.GroupID}
	s.tasks.Enqueue("link-recipe:"+recipeID, func(ctx context.Context) error {
		_, err := linker.LinkRecipe(ctx, link)
		return err
	})
}
