package handler

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/smallplates/internal/logger"
	"github.com/smallplates/internal/service"
	"github.com/smallplates/internal/storage"
)

// Options carries the infrastructure the handlers need beyond the database.
type Options struct {
	Bucket    storage.Bucket
	Agent     *service.PromptAgentClient
	Tasks     service.TaskRunner
	Placement service.Placement
	Logger    *slog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	collections *service.CollectionService
	guests      *service.GuestService
	recipes     *service.RecipeService
	submissions *service.SubmissionService
	links       *service.LinkService
	prompts     *service.PromptService
	operations  *service.OperationsService
	evaluations *service.PromptEvaluationService
	groups      *service.GroupRecipeService
	system      *service.SystemSettingService
	log         *slog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	log := logger.OrDefault(opts.Logger, "http")
	agent := opts.Agent
	if agent == nil {
		agent = service.NewPromptAgentClient("", 0)
	}

	collections := service.NewCollectionService(gdb)
	guests := service.NewGuestService(gdb)
	recipes := service.NewRecipeService(gdb)
	system := service.NewSystemSettingService(gdb)
	prompts := service.NewPromptService(gdb, agent, system)
	links := service.NewLinkService(gdb, collections)

	return &API{
		db:          gdb,
		collections: collections,
		guests:      guests,
		recipes:     recipes,
		submissions: service.NewSubmissionService(service.SubmissionDeps{
			Collections: collections,
			Guests:      guests,
			Recipes:     recipes,
			Stager:      storage.NewStager(opts.Bucket, nil),
			Mover:       storage.NewMover(opts.Bucket, nil),
			Prompts:     prompts,
			Linker:      links,
			Tasks:       opts.Tasks,
			Placement:   opts.Placement,
		}),
		links:       links,
		prompts:     prompts,
		operations:  service.NewOperationsService(gdb, recipes, opts.Bucket),
		evaluations: service.NewPromptEvaluationService(gdb),
		groups:      service.NewGroupRecipeService(gdb),
		system:      system,
		log:         log,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
