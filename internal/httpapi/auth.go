package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnauthenticated means the request carried no credentials.
	ErrUnauthenticated = errors.New("missing bearer token")
	// ErrForbidden means the credentials were present but not accepted.
	ErrForbidden = errors.New("token not accepted")
)

// Authenticator decides whether a request may use the serving routes. It
// returns nil, ErrUnauthenticated or ErrForbidden.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// TokenAuthenticator accepts bearer tokens matching one of a set of bcrypt hashes.
type TokenAuthenticator struct {
	hashes [][]byte
}

// NewTokenAuthenticator validates and stores bcrypt hashes.
func NewTokenAuthenticator(hashes []string) (*TokenAuthenticator, error) {
	a := &TokenAuthenticator{}
	for i, h := range hashes {
		h = strings.TrimSpace(h)
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("token hash %d: %w", i, err)
		}
		a.hashes = append(a.hashes, []byte(h))
	}
	if len(a.hashes) == 0 {
		return nil, errors.New("no token hashes configured")
	}
	return a, nil
}

func (a *TokenAuthenticator) Authenticate(r *http.Request) error {
	token, ok := bearerToken(r)
	if !ok {
		return ErrUnauthenticated
	}
	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			return nil
		}
	}
	return ErrForbidden
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("token is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}
		switch err := authenticator.Authenticate(r); {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrUnauthenticated):
			IncrementRejection("unauthenticated")
			w.Header().Set("WWW-Authenticate", `Bearer realm="servingd"`)
			writeJSONError(w, http.StatusUnauthorized, "Could not validate credentials")
		default:
			IncrementRejection("forbidden")
			writeJSONError(w, http.StatusForbidden, "Not authorized to use this endpoint")
		}
	})
}
