package dto

import (
	"time"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// PreRegisterUserRequest adds a user by chat handle before they contact the bot.
type PreRegisterUserRequest struct {
	Username string          `json:"username"`
	Role     domain.UserRole `json:"role"`
}

// UpdateUserRequest changes a participant. Omitted fields stay as they are; an
// empty display_name clears the override.
type UpdateUserRequest struct {
	Role        *domain.UserRole `json:"role"`
	DisplayName *string          `json:"display_name"`
}

// UserResponse represents a participant.
type UserResponse struct {
	ID          int64           `json:"id"`
	PlatformID  *int64          `json:"platform_id"`
	Username    *string         `json:"username"`
	FirstName   *string         `json:"first_name"`
	DisplayName *string         `json:"display_name"`
	Role        domain.UserRole `json:"role"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewUserResponse maps a user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		PlatformID:  u.PlatformID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}
