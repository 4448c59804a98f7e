package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/lov"
)

// LOVHandlers serves lists of values to field editors
type LOVHandlers struct {
	registry *lov.Registry
}

// NewLOVHandlers creates list-of-values handlers
func NewLOVHandlers(registry *lov.Registry) *LOVHandlers {
	return &LOVHandlers{registry: registry}
}

// RegisterRoutes registers list-of-values routes
func (h *LOVHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/lov", h.list).Methods("GET")
	router.HandleFunc("/api/v1/lov/{name}", h.get).Methods("GET")
}

// list handles GET /api/v1/lov
func (h *LOVHandlers) list(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, h.registry.Names())
}

// get handles GET /api/v1/lov/{name}
func (h *LOVHandlers) get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	options, err := h.registry.Options(r.Context(), name)
	if err != nil {
		logFailure(r, err)
		httputil.WriteAppError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, LOVResponse{Name: name, Options: options})
}
