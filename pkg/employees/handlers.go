package employees

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Handlers exposes employee CRUD over HTTP
type Handlers struct {
	service *Service
}

// NewHandlers creates employee handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers employee routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/employees", h.create).Methods("POST")
	router.HandleFunc("/api/v1/employees/{id:[0-9]+}", h.get).Methods("GET")
	router.HandleFunc("/api/v1/employees/{id:[0-9]+}", h.update).Methods("PUT")
	router.HandleFunc("/api/v1/employees/{id:[0-9]+}", h.delete).Methods("DELETE")
}

// create handles POST /api/v1/employees
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var e Employee
	if !httputil.ParseJSONOrError(w, r, &e) {
		return
	}
	e.ID = 0
	if _, err := h.service.Create(r.Context(), &e); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, &e)
}

// get handles GET /api/v1/employees/{id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, e)
}

// update handles PUT /api/v1/employees/{id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var e Employee
	if !httputil.ParseJSONOrError(w, r, &e) {
		return
	}
	if err := h.service.Update(r.Context(), id, &e); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

// delete handles DELETE /api/v1/employees/{id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httputil.StatusOf(err) >= http.StatusInternalServerError {
		observability.FromContext(r.Context(), nil).WithError(err).Error("employee request failed")
	}
	httputil.WriteAppError(w, err)
}
