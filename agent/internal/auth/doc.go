// Package auth provides authentication middleware for the calloutd HTTP
// surface.
//
// APIKey(mode, header, key) returns middleware that validates the API key
// carried in the named request header.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local use with auth disabled). When the key is incorrect or absent the
// middleware answers 401 immediately and the wrapped handler is not called.
package auth
