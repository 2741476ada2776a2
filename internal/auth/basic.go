package auth

import (
	"crypto/subtle"
	"net/http"
)

// BasicEngine authenticates requests via HTTP Basic credentials: a single
// shared credential pair between the storage service and its callers.
type BasicEngine struct {
	Username string
	Password string
}

// NewBasicEngine creates a BasicEngine for the given credential pair.
func NewBasicEngine(username, password string) *BasicEngine {
	return &BasicEngine{Username: username, Password: password}
}

// AuthenticateRequest checks the Authorization header for valid Basic Auth
// credentials. It returns true if the credentials are valid, false otherwise.
func (e *BasicEngine) AuthenticateRequest(r *http.Request) (bool, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false, nil
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(e.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(e.Password)) == 1
	return userOK && passOK, nil
}
