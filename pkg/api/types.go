package api

import (
	"encoding/json"

	"github.com/platinummonkey/adminkit/pkg/extension"
	"github.com/platinummonkey/adminkit/pkg/search"
)

// SearchBody is the request body of the search endpoints
type SearchBody struct {
	// Params is decoded into the query model of the named query
	Params   json.RawMessage `json:"params,omitempty"`
	Page     int             `json:"page,omitempty"`
	PageSize int             `json:"page_size,omitempty"`
	// OrderBy entries are "field" or "field DESC"
	OrderBy []string `json:"order_by,omitempty"`
}

// SearchResponse is one page of model rows
type SearchResponse struct {
	Query    string        `json:"query"`
	Rows     []interface{} `json:"rows"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// FieldRequest creates or replaces a field definition. Catalog, when set,
// fills Options from the named list of values.
type FieldRequest struct {
	extension.FieldSpec
	Catalog string `json:"catalog,omitempty"`
	// Version is required on update and must match the stored field
	Version int `json:"version,omitempty"`
}

// FieldsResponse lists the caller's fields for an extension point
type FieldsResponse struct {
	Point     string               `json:"point"`
	Extension *extension.Extension `json:"extension,omitempty"`
	Fields    []*extension.Field   `json:"fields"`
}

// ExtensionUpdate renames an extension and replaces its attributes
type ExtensionUpdate struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// QueryInfo describes a registered query
type QueryInfo struct {
	Name       string          `json:"name"`
	Entity     string          `json:"entity"`
	Extendable bool            `json:"extendable"`
	Columns    []search.Column `json:"columns"`
}

// LOVResponse holds the options of a list of values
type LOVResponse struct {
	Name    string                `json:"name"`
	Options []extension.LOVOption `json:"options"`
}
