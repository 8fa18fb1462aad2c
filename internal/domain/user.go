package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserRole distinguishes people who raise tickets from people who answer them.
type UserRole string

const (
	UserRoleRequester UserRole = "requester"
	UserRoleResponder UserRole = "responder"
)

// Valid reports whether the role is one the store accepts.
func (r UserRole) Valid() bool {
	return r == UserRoleRequester || r == UserRoleResponder
}

// User is a chat participant. PlatformID stays nil until a pre-registered
// username contacts the bot for the first time.
type User struct {
	ID          int64
	PlatformID  *int64
	Username    *string
	FirstName   *string
	DisplayName *string
	Role        UserRole
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Name returns the best human label available for the user.
func (u *User) Name() string {
	switch {
	case u.DisplayName != nil && *u.DisplayName != "":
		return *u.DisplayName
	case u.FirstName != nil && *u.FirstName != "":
		return *u.FirstName
	case u.Username != nil && *u.Username != "":
		return *u.Username
	}
	return "—"
}

// Identity renders "Name (@username)" used as the sender prefix of relayed messages.
func (u *User) Identity() string {
	if u.Username != nil && *u.Username != "" && u.Name() != *u.Username {
		return fmt.Sprintf("%s (@%s)", u.Name(), *u.Username)
	}
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return u.Name()
}

// NormalizeUsername strips a leading @ and lower-cases the handle.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
