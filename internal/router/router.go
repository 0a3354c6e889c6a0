package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/loekTheDreamer/neoplay-backend/internal/handlers"
	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	streamHandler *handlers.StreamHandler,
	gameHandler *handlers.GameHandler,
	threadHandler *handlers.ThreadHandler,
	publishHandler *handlers.PublishHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Login/refresh are unauthenticated, so their limiter keys by IP. The
	// counter limiter sits behind the JWT middleware and keys by wallet.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	counterLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Chat Stream Routes ────
		// Setup is bearer-authenticated; the stream itself relies on the
		// session cookie set by setup because EventSource cannot send
		// headers.
		r.Route("/chat", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/setup-stream", streamHandler.SetupStream)
			})
			r.Get("/stream", streamHandler.Stream)
		})

		// ──── Game Routes ────
		r.Route("/games", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", gameHandler.Create)
			r.Get("/user", gameHandler.ListUser)
			r.Post("/save", gameHandler.Save)
			r.Put("/{id}/name", gameHandler.Rename)
			r.Delete("/{id}", gameHandler.Delete)
			r.Group(func(r chi.Router) {
				r.Use(counterLimiter.Middleware)
				r.Post("/{id}/like", gameHandler.Like)
				r.Post("/{id}/play", gameHandler.Play)
			})
			r.Post("/{id}/threads", threadHandler.Create)
		})

		// ──── Thread Routes ────
		r.Route("/threads", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", threadHandler.Get)
		})

		// ──── Publish Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/publish", publishHandler.Publish)
		})
		r.Get("/published", publishHandler.ListPublished)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
