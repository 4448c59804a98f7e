package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/contextkeys"
	"github.com/platinummonkey/adminkit/pkg/export"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/query"
	"github.com/platinummonkey/adminkit/pkg/rbac"
	"github.com/platinummonkey/adminkit/pkg/search"
)

// SearchHandlers exposes the search engine, per-user settings and exports
type SearchHandlers struct {
	engine   *search.Engine
	exporter *export.Exporter
}

// NewSearchHandlers creates search handlers. exporter may be nil, which
// disables the export routes.
func NewSearchHandlers(engine *search.Engine, exporter *export.Exporter) *SearchHandlers {
	return &SearchHandlers{engine: engine, exporter: exporter}
}

// RegisterRoutes registers search routes. Searches are authorized by the
// engine; guard covers settings and export downloads.
func (h *SearchHandlers) RegisterRoutes(router *mux.Router, guard *rbac.PermissionMiddleware) {
	router.HandleFunc("/api/v1/search", h.listQueries).Methods("GET")
	router.HandleFunc("/api/v1/search/{query}", h.describe).Methods("GET")
	router.HandleFunc("/api/v1/search/{query}", h.search).Methods("POST")
	router.HandleFunc("/api/v1/search/{query}/table", h.table).Methods("POST")

	readSettings := protect(guard, rbac.ResourceSettings, rbac.ActionRead, "query")
	writeSettings := protect(guard, rbac.ResourceSettings, rbac.ActionWrite, "query")
	router.Handle("/api/v1/search/{query}/settings", readSettings(http.HandlerFunc(h.getSettings))).Methods("GET")
	router.Handle("/api/v1/search/{query}/settings", writeSettings(http.HandlerFunc(h.saveSettings))).Methods("PUT")

	if h.exporter != nil {
		download := protect(guard, rbac.ResourceSearch, rbac.ActionExport, "")
		router.HandleFunc("/api/v1/search/{query}/export", h.export).Methods("POST")
		router.Handle("/api/v1/exports/{name}", download(http.HandlerFunc(h.download))).Methods("GET")
	}
}

// listQueries handles GET /api/v1/search
func (h *SearchHandlers) listQueries(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, h.engine.Registry().Names())
}

// describe handles GET /api/v1/search/{query}: the query's full column set
func (h *SearchHandlers) describe(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["query"]
	desc, err := h.engine.Registry().Lookup(name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	columns, err := h.engine.Settings().ComputeAllColumns(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, QueryInfo{
		Name:       desc.Name,
		Entity:     desc.Entity,
		Extendable: desc.Extendable(),
		Columns:    columns,
	})
}

// search handles POST /api/v1/search/{query}
func (h *SearchHandlers) search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := res.Rows
	if rows == nil {
		rows = []interface{}{}
	}
	_ = httputil.WriteSuccess(w, SearchResponse{
		Query:    res.Query,
		Rows:     rows,
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	})
}

// table handles POST /api/v1/search/{query}/table
func (h *SearchHandlers) table(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	table, err := h.engine.SearchFormatted(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, table)
}

// export handles POST /api/v1/search/{query}/export. With ?download=true
// the CSV is streamed back; otherwise the written file is described.
func (h *SearchHandlers) export(w http.ResponseWriter, r *http.Request) {
	download, err := httputil.ParseQueryBool(r, "download", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	file, err := h.exporter.Export(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if download {
		h.serve(w, r, file.Name)
		return
	}
	_ = httputil.WriteCreated(w, file)
}

// download handles GET /api/v1/exports/{name}
func (h *SearchHandlers) download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, mux.Vars(r)["name"])
}

func (h *SearchHandlers) serve(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.exporter.Open(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, modTime, f)
}

// getSettings handles GET /api/v1/search/{query}/settings
func (h *SearchHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := h.engine.Settings().UserSettings(ctx, contextkeys.GetUserID(ctx), mux.Vars(r)["query"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, settings)
}

// saveSettings handles PUT /api/v1/search/{query}/settings. Columns need
// only key, displayed and format; the rest comes from the schema.
func (h *SearchHandlers) saveSettings(w http.ResponseWriter, r *http.Request) {
	var body search.Settings
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	ctx := r.Context()
	body.UserID = contextkeys.GetUserID(ctx)
	body.Query = mux.Vars(r)["query"]
	if body.UserID == "" {
		httputil.WriteUnauthorized(w, "user id is required to save settings")
		return
	}
	saved, err := h.engine.Settings().SaveUserSettings(ctx, &body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, saved)
}

// request decodes a SearchBody into a SearchRequest for the {query} route
// variable. The params are decoded into a new query model.
func (h *SearchHandlers) request(w http.ResponseWriter, r *http.Request) (*search.SearchRequest, bool) {
	name := mux.Vars(r)["query"]
	var body SearchBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return nil, false
	}

	params, err := h.engine.Registry().NewParams(name)
	if err != nil {
		httputil.WriteAppError(w, err)
		return nil, false
	}
	if len(body.Params) > 0 && string(body.Params) != "null" {
		if err := json.Unmarshal(body.Params, params); err != nil {
			httputil.WriteAppError(w, apperrors.InvalidArgument("api.search", "invalid params for query %q: %v", name, err))
			return nil, false
		}
	}

	req := &search.SearchRequest{
		Query:    name,
		Params:   params,
		Page:     body.Page,
		PageSize: body.PageSize,
	}
	for _, s := range body.OrderBy {
		order, err := query.ParseOrder(s)
		if err != nil {
			httputil.WriteAppError(w, apperrors.InvalidArgument("api.search", "%v", err))
			return nil, false
		}
		req.OrderBy = append(req.OrderBy, order)
	}
	return req, true
}

func (h *SearchHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, err)
	httputil.WriteAppError(w, err)
}
