package authproxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/andrebq/cgitauth/authprogram/api"
	"github.com/julienschmidt/httprouter"
)

// AsHandler serves the realm endpoints and, when upstream is set, proxies
// every other request to it once the session cookie checks out.
func AsHandler(realm *api.Realm, upstream *url.URL) http.Handler {
	router := httprouter.New()
	realm.Register(router)
	if upstream == nil {
		return router
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	// delegate to upstream if not a realm endpoint
	router.NotFound = realm.Protect(proxy)
	router.HandleMethodNotAllowed = false
	return router
}
