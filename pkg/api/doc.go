// Package api is the HTTP surface of adminkit.
//
// Routes:
//
//	GET    /api/v1/extension-points
//	GET    /api/v1/extension-points/{point}/extensions
//	GET    /api/v1/extensions/{point}              caller's extension
//	PUT    /api/v1/extensions/{point}              rename, set attributes
//	DELETE /api/v1/extensions/{point}
//	GET    /api/v1/extensions/{point}/fields
//	POST   /api/v1/extensions/{point}/fields
//	PUT    /api/v1/extensions/{point}/fields/{id}
//	DELETE /api/v1/extensions/{point}/fields/{id}
//
//	GET    /api/v1/search                          registered queries
//	GET    /api/v1/search/{query}                  full column set
//	POST   /api/v1/search/{query}                  page of model rows
//	POST   /api/v1/search/{query}/table            formatted page
//	GET    /api/v1/search/{query}/settings
//	PUT    /api/v1/search/{query}/settings
//	POST   /api/v1/search/{query}/export           ?download=true streams the CSV
//	GET    /api/v1/exports/{name}
//
//	GET    /api/v1/lov
//	GET    /api/v1/lov/{name}
//
// The caller is identified by the X-User-ID, X-Space-ID, X-Owner-Type and
// X-Owner-ID headers; an upstream gateway is expected to authenticate and
// set them. X-Attr-* headers become request attributes for context-sourced
// search conditions.
//
// Errors are JSON bodies of the form {"error": "...", "kind": "..."} with
// the status chosen by httputil.StatusOf.
package api
