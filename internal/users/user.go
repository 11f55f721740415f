package users

import (
	"fmt"
	"time"
)

// 0 = Admin, 1 = Dosen, 2 = Mahasiswa; stored as a small int in the db
type Role int8

const (
	RoleAdmin     Role = 0
	RoleDosen     Role = 1
	RoleMahasiswa Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleDosen:
		return "Dosen"
	case RoleMahasiswa:
		return "Mahasiswa"
	default:
		return fmt.Sprintf("Unknown(%d)", int8(r))
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDosen || r == RoleMahasiswa
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
