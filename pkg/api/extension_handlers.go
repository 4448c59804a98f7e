package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/lov"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/rbac"
)

// ExtensionHandlers manages extension points, extensions and fields
type ExtensionHandlers struct {
	meta    *extension.MetadataService
	lov     *lov.Registry
	metrics *observability.Metrics
}

// NewExtensionHandlers creates extension handlers. lovs may be nil when no
// catalogs are configured.
func NewExtensionHandlers(meta *extension.MetadataService, lovs *lov.Registry, metrics *observability.Metrics) *ExtensionHandlers {
	return &ExtensionHandlers{meta: meta, lov: lovs, metrics: metrics}
}

// RegisterRoutes registers extension routes. guard, when non-nil, wraps
// every route with a permission check on the {point} variable.
func (h *ExtensionHandlers) RegisterRoutes(router *mux.Router, guard *rbac.PermissionMiddleware) {
	read := protect(guard, rbac.ResourceExtension, rbac.ActionRead, "point")
	write := protect(guard, rbac.ResourceExtension, rbac.ActionWrite, "point")

	router.HandleFunc("/api/v1/extension-points", h.listPoints).Methods("GET")
	router.Handle("/api/v1/extension-points/{point}/extensions", read(http.HandlerFunc(h.listExtensions))).Methods("GET")

	router.Handle("/api/v1/extensions/{point}", read(http.HandlerFunc(h.getExtension))).Methods("GET")
	router.Handle("/api/v1/extensions/{point}", write(http.HandlerFunc(h.updateExtension))).Methods("PUT")
	router.Handle("/api/v1/extensions/{point}", write(http.HandlerFunc(h.deleteExtension))).Methods("DELETE")

	router.Handle("/api/v1/extensions/{point}/fields", read(http.HandlerFunc(h.listFields))).Methods("GET")
	router.Handle("/api/v1/extensions/{point}/fields", write(http.HandlerFunc(h.addField))).Methods("POST")
	router.Handle("/api/v1/extensions/{point}/fields/{id:[0-9]+}", write(http.HandlerFunc(h.updateField))).Methods("PUT")
	router.Handle("/api/v1/extensions/{point}/fields/{id:[0-9]+}", write(http.HandlerFunc(h.deleteField))).Methods("DELETE")
}

func protect(guard *rbac.PermissionMiddleware, resource rbac.Resource, action rbac.Action, targetVar string) func(http.Handler) http.Handler {
	if guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return guard.RequirePermission(resource, action, targetVar)
}

// listPoints handles GET /api/v1/extension-points
func (h *ExtensionHandlers) listPoints(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, h.meta.Points().List())
}

// listExtensions handles GET /api/v1/extension-points/{point}/extensions
func (h *ExtensionHandlers) listExtensions(w http.ResponseWriter, r *http.Request) {
	point, err := h.meta.Points().Lookup(mux.Vars(r)["point"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	exts, err := h.meta.ListExtensions(r.Context(), point.TargetType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, exts)
}

// getExtension handles GET /api/v1/extensions/{point}
func (h *ExtensionHandlers) getExtension(w http.ResponseWriter, r *http.Request) {
	ext, err := h.meta.ResolveExtension(r.Context(), mux.Vars(r)["point"], false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, ext)
}

// updateExtension handles PUT /api/v1/extensions/{point}
func (h *ExtensionHandlers) updateExtension(w http.ResponseWriter, r *http.Request) {
	var body ExtensionUpdate
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	ctx := r.Context()
	ext, err := h.meta.ResolveExtension(ctx, mux.Vars(r)["point"], true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ext, err = h.meta.UpdateExtension(ctx, ext.ID, body.Name, body.Attributes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordExtensionMutation("update_extension")
	_ = httputil.WriteSuccess(w, ext)
}

// deleteExtension handles DELETE /api/v1/extensions/{point}
func (h *ExtensionHandlers) deleteExtension(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ext, err := h.meta.ResolveExtension(ctx, mux.Vars(r)["point"], false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.meta.DeleteExtension(ctx, ext.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordExtensionMutation("delete_extension")
	httputil.WriteNoContent(w)
}

// listFields handles GET /api/v1/extensions/{point}/fields
func (h *ExtensionHandlers) listFields(w http.ResponseWriter, r *http.Request) {
	point := mux.Vars(r)["point"]
	ext, fields, err := h.meta.FieldsForPoint(r.Context(), point)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, FieldsResponse{Point: point, Extension: ext, Fields: fields})
}

// addField handles POST /api/v1/extensions/{point}/fields. The caller's
// extension is created on first use.
func (h *ExtensionHandlers) addField(w http.ResponseWriter, r *http.Request) {
	var body FieldRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	ctx := r.Context()
	spec, err := h.resolveSpec(ctx, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ext, err := h.meta.ResolveExtension(ctx, mux.Vars(r)["point"], true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	field, err := h.meta.AddField(ctx, ext.ID, spec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordExtensionMutation("add_field")
	_ = httputil.WriteCreated(w, field)
}

// updateField handles PUT /api/v1/extensions/{point}/fields/{id}
func (h *ExtensionHandlers) updateField(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var body FieldRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	ctx := r.Context()
	ext, err := h.ownedExtension(ctx, mux.Vars(r)["point"], id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	spec, err := h.resolveSpec(ctx, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	field, err := h.meta.UpdateField(ctx, &extension.Field{
		ID:          id,
		ExtensionID: ext.ID,
		Name:        spec.Name,
		Description: spec.Description,
		Type:        spec.Type,
		Required:    spec.Required,
		MaxLength:   spec.MaxLength,
		Options:     spec.Options,
		Version:     body.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordExtensionMutation("update_field")
	_ = httputil.WriteSuccess(w, field)
}

// deleteField handles DELETE /api/v1/extensions/{point}/fields/{id}
func (h *ExtensionHandlers) deleteField(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.ownedExtension(ctx, mux.Vars(r)["point"], id); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.meta.DeleteField(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordExtensionMutation("delete_field")
	httputil.WriteNoContent(w)
}

// ownedExtension returns the caller's extension for point after checking
// that the field belongs to it
func (h *ExtensionHandlers) ownedExtension(ctx context.Context, point string, fieldID int64) (*extension.Extension, error) {
	ext, err := h.meta.ResolveExtension(ctx, point, false)
	if err != nil {
		return nil, err
	}
	if err := h.meta.ValidateFieldOwnership(ctx, ext.ID, fieldID); err != nil {
		return nil, err
	}
	return ext, nil
}

func (h *ExtensionHandlers) resolveSpec(ctx context.Context, body FieldRequest) (extension.FieldSpec, error) {
	spec := body.FieldSpec
	if body.Catalog == "" {
		return spec, nil
	}
	if len(spec.Options) > 0 {
		return spec, apperrors.InvalidArgument("api.resolveSpec", "options and catalog are mutually exclusive")
	}
	if h.lov == nil {
		return spec, apperrors.NotFound("api.resolveSpec", "list of values %q", body.Catalog)
	}
	options, err := h.lov.Options(ctx, body.Catalog)
	if err != nil {
		return spec, err
	}
	spec.Options = options
	return spec, nil
}

func (h *ExtensionHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, err)
	httputil.WriteAppError(w, err)
}
