package models

import (
	"time"

	"github.com/avendale/dataroom/internal/server/roles"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Role      roles.Role
	CreatedAt time.Time
}
