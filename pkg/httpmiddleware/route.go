package httpmiddleware

import "net/http"

// RouteFunc names the route a request matches. It keeps span names and log
// fields low-cardinality.
type RouteFunc func(r *http.Request) string

// MuxRoute resolves the registered pattern of mux that would serve r, such
// as "GET /products/{id}". Unmatched requests resolve to "unmatched".
func MuxRoute(mux *http.ServeMux) RouteFunc {
	return func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}
}
