package server

import (
	"net/http"

	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/go-chi/chi/v5"
)

// ChiRouter implements the [Router] interface on top of a [chi.Mux].
//
// Middleware must be added before any route: chi panics otherwise.
type ChiRouter struct {
	mux *chi.Mux
}

// NewChiRouter creates a new [ChiRouter] whose unknown paths and methods answer with a JSON [models.ErrorResponse].
func NewChiRouter() *ChiRouter {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, models.KindBadRequest, "not found", nil)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, models.KindBadRequest, "method not allowed", nil)
	})
	return &ChiRouter{mux: mux}
}

// Use adds [Middleware] to the router, applied in the order it's added.
//
// Middleware runs before route matching, so it also sees preflight and unknown-route requests.
func (r *ChiRouter) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.mux.Use(m)
	}
}

// Handle registers a handler for the specified HTTP method and path.
func (r *ChiRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Method(method, path, handler)
}

// Handler registers a custom [Handler] on every route it reports, for any method.
func (r *ChiRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.mux.Handle(route, handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *ChiRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
