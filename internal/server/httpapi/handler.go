// Package httpapi is the public HTTP boundary of the server: chi routes,
// request decoding, bearer authentication and error mapping.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/memestore/internal/logging"
	"github.com/dmitrijs2005/memestore/internal/server/models"
	"github.com/dmitrijs2005/memestore/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions is the part of services.SessionService the handlers use.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, password string) error
	DeleteUser(ctx context.Context, userID string) error
}

// Media is the part of services.MediaService the handlers use.
type Media interface {
	Create(ctx context.Context, ownerID string, in services.NewMeme) (*services.MemeView, error)
	GetOwn(ctx context.Context, ownerID string, id int64) (*services.MemeView, error)
	ListOwn(ctx context.Context, ownerID string, page models.Page) ([]*services.MemeView, error)
	GetPublic(ctx context.Context, ownerID string, id int64) (*services.MemeView, error)
	ListPublic(ctx context.Context, ownerID string, page models.Page) ([]*services.MemeView, error)
	Update(ctx context.Context, ownerID string, id int64, upd models.MemeUpdate) (*services.MemeView, error)
	Delete(ctx context.Context, ownerID string, id int64) error
	ImageKeys(ctx context.Context, userID string) ([]string, error)
	RemoveObjects(ctx context.Context, keys []string)
}

// Handler serves the HTTP API.
type Handler struct {
	sessions       Sessions
	media          Media
	log            logging.Logger
	maxUploadBytes int64
}

func NewHandler(sessions Sessions, media Media, log logging.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		sessions:       sessions,
		media:          media,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// NewRouter mounts all routes. limiter guards the /auth group. Forwarding
// headers are honoured only with trustProxy, otherwise any client could pick
// its own rate-limit key.
func NewRouter(h *Handler, limiter *RateLimiter, trustProxy bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/access-token", h.login)
		r.Post("/refresh-token", h.refresh)
		r.Post("/register", h.register)
	})

	r.Get("/users/{user_id}/memes", h.listPublicMemes)
	r.Get("/users/{user_id}/memes/{meme_id}", h.getPublicMeme)

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)

		r.Get("/users/me", h.me)
		r.Put("/users/me/password", h.updatePassword)
		r.Delete("/users/me", h.deleteMe)

		r.Route("/me/memes", func(r chi.Router) {
			r.Get("/", h.listOwnMemes)
			r.Post("/", h.createMeme)
			r.Get("/{meme_id}", h.getOwnMeme)
			r.Put("/{meme_id}", h.updateMeme)
			r.Delete("/{meme_id}", h.deleteMeme)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// fail writes the mapped error response and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeDetail(w, status, detail)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.log.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", clientIP(r),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
