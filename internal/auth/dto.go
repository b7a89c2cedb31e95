package auth

import (
	"time"

	"github.com/angelmondragon/gamestore-backend/internal/users"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
)

// LoginRequest captures operator credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string             `json:"accessToken"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	User        *users.OperatorDTO `json:"user"`
}

// CreateOperatorInput provisions an operator from the command line.
type CreateOperatorInput struct {
	Email    string
	Name     string
	Role     enums.UserRole
	Password string
}
