package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"trackhub-backend/internal/auth"
	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/cache"
	"trackhub-backend/internal/events"
	"trackhub-backend/internal/hub"
	"trackhub-backend/internal/integrations"
	"trackhub-backend/internal/middleware"
	"trackhub-backend/internal/rpc"
	"trackhub-backend/internal/services"
	"trackhub-backend/internal/storage"
)

// activityPublisher is the slice of the event publisher handlers use.
type activityPublisher interface {
	Publish(orgID, actorID, kind, entityID, summary string, projectID *string)
}

type Handler struct {
	storage      *storage.Storage
	members      memberStore
	authz        *authz.Evaluator
	cache        cache.Client
	events       activityPublisher
	rpc          *rpc.Client
	triageClient *services.OpenRouterClient
	hub          *hub.Hub
	authHandler  *auth.Handler
	enrollment   *integrations.EnrollmentHandler
}

func New(
	store *storage.Storage,
	evaluator *authz.Evaluator,
	cacheClient cache.Client,
	publisher *events.Publisher,
	rpcClient *rpc.Client,
	triageClient *services.OpenRouterClient,
	boardHub *hub.Hub,
	authHandler *auth.Handler,
	enrollment *integrations.EnrollmentHandler,
) *Handler {
	return &Handler{
		storage:      store,
		members:      store,
		authz:        evaluator,
		cache:        cacheClient,
		events:       publisher,
		rpc:          rpcClient,
		triageClient: triageClient,
		hub:          boardHub,
		authHandler:  authHandler,
		enrollment:   enrollment,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/swagger/*", httpSwagger.Handler())

	// Public surface
	r.Group(func(r chi.Router) {
		r.With(middleware.RateLimitSignup(h.cache)).Post("/v1/auth/signup", h.authHandler.Signup)
		r.With(middleware.RateLimitLogin(h.cache)).Post("/v1/auth/login", h.authHandler.Login)
		r.Post("/v1/auth/logout", h.authHandler.Logout)
		r.With(
			middleware.RateLimitEnrollIP(h.cache),
			middleware.RateLimitEnrollToken(h.cache),
		).Post("/v1/integrations/enroll", h.enrollment.EnrollIntegration)
	})

	// Authenticated surface
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/v1/auth/me", h.authHandler.Me)

		r.Route("/v1/organizations", func(r chi.Router) {
			r.Get("/", h.ListOrganizations)
			r.Post("/", h.CreateOrganization)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", h.GetOrganization)
				r.Put("/", h.UpdateOrganization)
				r.Delete("/", h.DeleteOrganization)

				r.Get("/members", h.ListMembers)
				r.Post("/members", h.AddMember)
				r.Put("/members/{memberID}", h.UpdateMemberRole)
				r.Delete("/members/{memberID}", h.RemoveMember)

				r.Get("/activity", h.ListActivity)
				r.Get("/ws", h.BoardWebsocket)

				r.Get("/integrations", h.ListIntegrations)
				r.Post("/integrations/{integrationID}/sync", h.SyncIntegration)
				r.Get("/enrollment-tokens", h.ListEnrollmentTokens)
				r.Post("/enrollment-tokens", h.CreateEnrollmentToken)
				r.Delete("/enrollment-tokens/{tokenID}", h.RevokeEnrollmentToken)

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", h.ListProjects)
					r.Post("/", h.CreateProject)

					r.Route("/{projectID}", func(r chi.Router) {
						r.Get("/", h.GetProject)
						r.Put("/", h.UpdateProject)
						r.Delete("/", h.DeleteProject)
						r.Get("/meta", h.GetProjectMeta)
						r.Post("/lead", h.TransferProjectLead)

						r.Get("/members", h.ListProjectMembers)
						r.Post("/members", h.AddProjectMember)
						r.Delete("/members/{memberID}", h.RemoveProjectMember)

						r.Get("/labels", h.ListLabels)
						r.Post("/labels", h.CreateLabel)
						r.Delete("/labels/{labelID}", h.DeleteLabel)

						r.Get("/sprints", h.ListSprints)
						r.Post("/sprints", h.CreateSprint)
						r.Get("/sprints/{sprintID}", h.GetSprint)
						r.Put("/sprints/{sprintID}", h.UpdateSprint)
						r.Delete("/sprints/{sprintID}", h.DeleteSprint)

						r.Route("/tickets", func(r chi.Router) {
							r.Get("/", h.ListTickets)
							r.Post("/", h.CreateTicket)
							r.Post("/reorder", h.ReorderTickets)

							r.Route("/{ticketID}", func(r chi.Router) {
								r.Get("/", h.GetTicket)
								r.Put("/", h.UpdateTicket)
								r.Delete("/", h.DeleteTicket)
								r.Post("/triage", h.TriageTicket)

								r.Get("/comments", h.ListComments)
								r.Post("/comments", h.CreateComment)
								r.Delete("/comments/{commentID}", h.DeleteComment)
							})
						})
					})
				})
			})
		})
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		for i, c := range s {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= '0' && c <= '9':
			case c == '-' && i > 0 && i < len(s)-1:
			default:
				return false
			}
		}
		return true
	})
	return v
}

// decodeValid decodes the JSON body into dst and runs struct validation.
// On failure it writes a 400 with per-field details and returns false.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid request body",
		})
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = "failed " + fe.Tag() + " validation"
			}
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "validation failed",
				"details": details,
			})
			return false
		}
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error": "validation failed",
		})
		return false
	}

	return true
}

// userID pulls the authenticated user from context. The auth middleware
// guarantees presence on the authenticated surface; the fallback 401
// covers direct handler invocation in tests.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

// httpError translates typed errors into the boundary status mapping.
// Anything unrecognized is logged and surfaces as a generic 500.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrAccessDenied):
		respondError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, authz.ErrInvalidOperation):
		respondError(w, http.StatusBadRequest, "invalid operation")
	case errors.Is(err, storage.ErrOrgNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrMemberNotFound),
		errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, storage.ErrProjectMemberNotFound),
		errors.Is(err, storage.ErrTicketNotFound),
		errors.Is(err, storage.ErrSprintNotFound),
		errors.Is(err, storage.ErrCommentNotFound),
		errors.Is(err, storage.ErrLabelNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrSlugTaken):
		respondError(w, http.StatusConflict, "slug already taken")
	case errors.Is(err, storage.ErrPrefixTaken):
		respondError(w, http.StatusConflict, "ticket prefix already taken")
	case errors.Is(err, storage.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, storage.ErrAlreadyMember):
		respondError(w, http.StatusConflict, "already a member")
	case errors.Is(err, rpc.ErrAgentOffline):
		respondError(w, http.StatusNotFound, "integration agent is offline")
	case errors.Is(err, rpc.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "integration agent timed out")
	default:
		log.Printf("ERROR Unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}
