package auth

import (
	"errors"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/users"
)

var ErrForbidden = errors.New("forbidden")

// AssertPrivileged rejects Mahasiswa principals. Admin and Dosen are
// not differentiated any further, a Dosen may mutate any course.
func AssertPrivileged(user *users.User) error {
	if user == nil {
		return ErrForbidden
	}
	if user.Role == users.RoleMahasiswa {
		return ErrForbidden
	}
	return nil
}
