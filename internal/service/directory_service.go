package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// DirectoryService administers users, topics and chat registrations.
type DirectoryService struct {
	store    repository.Store
	adminIDs map[int64]struct{}
	logger   *zap.Logger
}

// NewDirectoryService constructs the service. adminIDs are bootstrapped as
// responders the first time they contact the bot.
func NewDirectoryService(store repository.Store, adminIDs []int64, logger *zap.Logger) *DirectoryService {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &DirectoryService{store: store, adminIDs: admins, logger: logger}
}

// PreRegister creates a user known only by username, or updates the role of an existing one.
func (s *DirectoryService) PreRegister(ctx context.Context, username string, role domain.UserRole) (*domain.User, error) {
	normalized := domain.NormalizeUsername(username)
	if normalized == "" {
		return nil, apperrors.NewValidationError("username is required", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Users().GetByUsername(ctx, normalized)
		switch {
		case err == nil:
			if existing.Role != role {
				if err := tx.Users().SetRole(ctx, existing.ID, role); err != nil {
					return err
				}
				existing.Role = role
			}
			user = existing
			return nil
		case !apperrors.IsNotFound(err):
			return err
		}

		user = &domain.User{Username: &normalized, Role: role}
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IdentifyParticipant maps a platform account to a user. Known accounts get
// their metadata refreshed; unknown accounts are linked to a pre-registered
// username or, when configured as admins, created as responders. Anyone else is NotFound.
func (s *DirectoryService) IdentifyParticipant(ctx context.Context, platformID int64, username, firstName *string) (*domain.User, error) {
	var normalized *string
	if username != nil {
		if n := domain.NormalizeUsername(*username); n != "" {
			normalized = &n
		}
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Users().GetByPlatformID(ctx, platformID)
		if err == nil {
			handle := normalized
			if handle != nil {
				// another row may still hold the handle as a pending registration
				if holder, err := tx.Users().GetByUsername(ctx, *handle); err == nil && holder.ID != existing.ID {
					handle = nil
				} else if err != nil && !apperrors.IsNotFound(err) {
					return err
				}
			}
			if err := tx.Users().UpdateProfile(ctx, existing.ID, handle, firstName); err != nil {
				return err
			}
			user, err = tx.Users().GetByID(ctx, existing.ID)
			return err
		}
		if !apperrors.IsNotFound(err) {
			return err
		}

		if normalized != nil {
			pending, err := tx.Users().GetByUsername(ctx, *normalized)
			switch {
			case err == nil && pending.PlatformID == nil:
				if err := tx.Users().LinkPlatformID(ctx, pending.ID, platformID); err != nil {
					return err
				}
				if err := tx.Users().UpdateProfile(ctx, pending.ID, nil, firstName); err != nil {
					return err
				}
				s.logger.Info("linked pre-registered user", zap.Int64("user_id", pending.ID), zap.Int64("platform_id", platformID))
				user, err = tx.Users().GetByID(ctx, pending.ID)
				return err
			case err != nil && !apperrors.IsNotFound(err):
				return err
			}
		}

		if _, ok := s.adminIDs[platformID]; ok {
			user = &domain.User{PlatformID: &platformID, Username: normalized, FirstName: firstName, Role: domain.UserRoleResponder}
			return tx.Users().Create(ctx, user)
		}
		return apperrors.NewNotFound("user", map[string]any{"platform_id": platformID})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IsAdmin reports whether platformID is a configured administrator.
func (s *DirectoryService) IsAdmin(platformID int64) bool {
	_, ok := s.adminIDs[platformID]
	return ok
}

func (s *DirectoryService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

func (s *DirectoryService) GetUserByPlatformID(ctx context.Context, platformID int64) (*domain.User, error) {
	return s.store.Users().GetByPlatformID(ctx, platformID)
}

func (s *DirectoryService) SetRole(ctx context.Context, userID int64, role domain.UserRole) error {
	if !role.Valid() {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	return s.store.Users().SetRole(ctx, userID, role)
}

// SetDisplayName overrides the name shown on relayed messages. Blank clears it.
func (s *DirectoryService) SetDisplayName(ctx context.Context, userID int64, name string) error {
	var displayName *string
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		displayName = &trimmed
	}
	return s.store.Users().SetDisplayName(ctx, userID, displayName)
}

// UpdateUser applies the non-nil changes atomically and returns the updated user.
func (s *DirectoryService) UpdateUser(ctx context.Context, userID int64, role *domain.UserRole, displayName *string) (*domain.User, error) {
	if role != nil && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *role})
	}
	var updated *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		if role != nil {
			if err := tx.Users().SetRole(ctx, userID, *role); err != nil {
				return err
			}
		}
		if displayName != nil {
			var name *string
			if trimmed := strings.TrimSpace(*displayName); trimmed != "" {
				name = &trimmed
			}
			if err := tx.Users().SetDisplayName(ctx, userID, name); err != nil {
				return err
			}
		}
		user, err := tx.Users().GetByID(ctx, userID)
		updated = user
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", zap.Int64("user_id", userID))
	return updated, nil
}

func (s *DirectoryService) ListUsers(ctx context.Context, role *domain.UserRole) ([]domain.User, error) {
	return s.store.Users().List(ctx, role)
}

// CreateTopic adds a routing category. Duplicate names are a ConstraintViolation.
func (s *DirectoryService) CreateTopic(ctx context.Context, name string, description *string) (*domain.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("topic name is required", nil)
	}
	topic := &domain.Topic{Name: name, Description: description}
	if err := s.store.Topics().Create(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *DirectoryService) DeleteTopic(ctx context.Context, topicID int64) error {
	return s.store.Topics().Delete(ctx, topicID)
}

// BindChat routes the topic's new tickets to the chat with internal id chatID.
func (s *DirectoryService) BindChat(ctx context.Context, topicID, chatID int64) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Chats().GetByID(ctx, chatID); err != nil {
			return err
		}
		return tx.Topics().SetChat(ctx, topicID, &chatID)
	})
}

func (s *DirectoryService) UnbindChat(ctx context.Context, topicID int64) error {
	return s.store.Topics().SetChat(ctx, topicID, nil)
}

// AddResponder assigns a responder to the topic. Requesters cannot be assigned.
func (s *DirectoryService) AddResponder(ctx context.Context, topicID, userID int64) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Role != domain.UserRoleResponder {
			return apperrors.NewValidationError("user is not a responder", map[string]any{"user_id": userID})
		}
		if _, err := tx.Topics().GetByID(ctx, topicID); err != nil {
			return err
		}
		return tx.Topics().AddResponder(ctx, topicID, userID)
	})
}

func (s *DirectoryService) RemoveResponder(ctx context.Context, topicID, userID int64) error {
	return s.store.Topics().RemoveResponder(ctx, topicID, userID)
}

func (s *DirectoryService) GetTopic(ctx context.Context, topicID int64) (*domain.Topic, error) {
	return s.store.Topics().GetByID(ctx, topicID)
}

func (s *DirectoryService) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	return s.store.Topics().List(ctx)
}

// AvailableTopics lists topics that can receive new tickets.
func (s *DirectoryService) AvailableTopics(ctx context.Context) ([]domain.Topic, error) {
	return s.store.Topics().ListAvailable(ctx)
}

func (s *DirectoryService) Responders(ctx context.Context, topicID int64) ([]domain.User, error) {
	if _, err := s.store.Topics().GetByID(ctx, topicID); err != nil {
		return nil, err
	}
	return s.store.Topics().Responders(ctx, topicID)
}

// RegisterChat records the bot joining a group, reactivating it when known.
func (s *DirectoryService) RegisterChat(ctx context.Context, platformChatID int64, title string) (*domain.Chat, error) {
	chat, err := s.store.Chats().Upsert(ctx, platformChatID, title)
	if err != nil {
		return nil, err
	}
	s.logger.Info("chat registered", zap.Int64("platform_chat_id", platformChatID), zap.String("title", title))
	return chat, nil
}

// DeactivateChat records the bot leaving a group. Unknown chats are ignored.
func (s *DirectoryService) DeactivateChat(ctx context.Context, platformChatID int64) error {
	err := s.store.Chats().SetActive(ctx, platformChatID, false)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err == nil {
		s.logger.Info("chat deactivated", zap.Int64("platform_chat_id", platformChatID))
	}
	return err
}

// ActiveChat returns the registered chat for platformChatID when it is active.
func (s *DirectoryService) ActiveChat(ctx context.Context, platformChatID int64) (*domain.Chat, error) {
	chat, err := s.store.Chats().GetByPlatformID(ctx, platformChatID)
	if err != nil {
		return nil, err
	}
	if !chat.Active {
		return nil, apperrors.NewNotFound("chat", map[string]any{"platform_chat_id": platformChatID})
	}
	return chat, nil
}

func (s *DirectoryService) ListChats(ctx context.Context) ([]domain.Chat, error) {
	return s.store.Chats().List(ctx)
}
