package server

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminPasswordHeader carries the admin password on admin requests. HTTP
// basic auth with any user name is accepted too.
const AdminPasswordHeader = "X-Admin-Password"

var (
	errAdminDisabled = errors.New("admin access not configured")
	errAdminDenied   = errors.New("invalid admin password")
)

// adminAuth checks passwords against a bcrypt hash. An empty hash disables
// admin access.
type adminAuth struct {
	hash []byte
}

func newAdminAuth(hash string) adminAuth {
	return adminAuth{hash: []byte(hash)}
}

func (a adminAuth) enabled() bool { return len(a.hash) > 0 }

func (a adminAuth) verify(password string) error {
	if !a.enabled() {
		return errAdminDisabled
	}
	if password == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return errAdminDenied
	}
	return nil
}

func (a adminAuth) verifyRequest(r *http.Request) error {
	password := r.Header.Get(AdminPasswordHeader)
	if password == "" {
		if _, p, ok := r.BasicAuth(); ok {
			password = p
		}
	}
	return a.verify(password)
}

// HashAdminPassword produces a value for auth.admin_password_hash.
func HashAdminPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
