package cache

import (
	"net/http"
	"net/url"
)

// KeyPrefix is prepended to every derived cache key.
const KeyPrefix = "api"

// CacheKey identifies a cacheable read request.
// The HTTP method is deliberately not part of the key.
type CacheKey struct {
	// Endpoint is the escaped request path (e.g., "/api/products")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values
}

// KeyFromRequest derives the cache key for r from its path and query.
func KeyFromRequest(r *http.Request) CacheKey {
	return CacheKey{
		Endpoint:    r.URL.EscapedPath(),
		QueryParams: r.URL.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: api:<escaped path>[?<encoded query>]
//
// The query is url.Values.Encode output: names sorted, names and values
// escaped, repeated values kept in request order. ?a=1&b=2 and ?b=2&a=1
// share a key, while ?tag=a,b and ?tag=a&tag=b do not.
//
// Example:
//
//	api:/api/products?category=grain&page=2
func (k CacheKey) String() string {
	endpoint := k.Endpoint
	if endpoint == "" {
		endpoint = "/"
	}

	key := KeyPrefix + ":" + endpoint
	if query := k.QueryParams.Encode(); query != "" {
		key += "?" + query
	}
	return key
}
