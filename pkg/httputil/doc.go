// Package httputil provides HTTP helpers shared by the adminkit handlers.
//
// # Responses
//
//	httputil.WriteSuccess(w, field)
//	httputil.WriteCreated(w, field)
//	httputil.WriteAppError(w, err)
//
// WriteAppError maps the apperrors taxonomy to status codes:
//
//	ErrNotFound                                404
//	ErrInvalidArgument                         400
//	ErrUnauthorized                            403
//	ErrConstraintViolation, ErrVersionConflict 409
//	anything else                              500
//
// A 500 never leaks the wrapped storage error; the full error is logged by
// the caller.
//
// # Requests
//
//	var spec extension.FieldSpec
//	if !httputil.ParseJSONOrError(w, r, &spec) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
package httputil
