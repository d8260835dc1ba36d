package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Email     string
	Name      string
	Role      string
}

// Identity returned by the external OAuth provider
type Identity struct {
	Subject string
	Email   string
	Name    string
}
