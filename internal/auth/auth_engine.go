package auth

import (
	"net/http"
)

// Engine decides whether an HTTP request carries valid credentials.
type Engine interface {

	// AuthenticateRequest inspects the given HTTP request for valid
	// authentication credentials. If valid, it returns true; otherwise, it
	// returns false. An error is returned if there was an issue processing
	// the authentication.
	AuthenticateRequest(r *http.Request) (bool, error)
}
