package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

func TestIdentifyParticipant(t *testing.T) {
	f := newFixture(t)

	t.Run("links pre-registered username case-insensitively", func(t *testing.T) {
		_, err := f.directory.PreRegister(f.ctx, "@Bob", domain.UserRoleRequester)
		require.NoError(t, err)

		user, err := f.directory.IdentifyParticipant(f.ctx, 333, strPtr("BOB"), strPtr("Bob"))
		require.NoError(t, err)
		require.NotNil(t, user.PlatformID)
		assert.EqualValues(t, 333, *user.PlatformID)
		assert.Equal(t, "Bob", *user.FirstName)
	})

	t.Run("known account refreshes metadata", func(t *testing.T) {
		user, err := f.directory.IdentifyParticipant(f.ctx, requesterPID, strPtr("alice"), strPtr("Alicia"))
		require.NoError(t, err)
		assert.Equal(t, f.requester.ID, user.ID)
		assert.Equal(t, "Alicia", *user.FirstName)
	})

	t.Run("admins are bootstrapped as responders", func(t *testing.T) {
		user, err := f.directory.IdentifyParticipant(f.ctx, 900, strPtr("root"), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.UserRoleResponder, user.Role)
		assert.True(t, f.directory.IsAdmin(900))
	})

	t.Run("strangers are not found", func(t *testing.T) {
		_, err := f.directory.IdentifyParticipant(f.ctx, 444, strPtr("mallory"), nil)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestPreRegisterIsIdempotentAndUpdatesRole(t *testing.T) {
	f := newFixture(t)

	first, err := f.directory.PreRegister(f.ctx, "carol", domain.UserRoleRequester)
	require.NoError(t, err)
	second, err := f.directory.PreRegister(f.ctx, "@CAROL", domain.UserRoleResponder)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.UserRoleResponder, second.Role)

	_, err = f.directory.PreRegister(f.ctx, "@", domain.UserRoleRequester)
	assert.Error(t, err)
}

func TestTopicAdministration(t *testing.T) {
	f := newFixture(t)

	_, err := f.directory.CreateTopic(f.ctx, "IT", nil)
	assert.True(t, apperrors.IsConstraintViolation(err), "duplicate topic names are rejected")

	err = f.directory.AddResponder(f.ctx, f.topic.ID, f.requester.ID)
	assert.Error(t, err, "requesters cannot be assigned")

	available, err := f.directory.AvailableTopics(f.ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)

	require.NoError(t, f.directory.DeactivateChat(f.ctx, groupChatID))
	available, err = f.directory.AvailableTopics(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, available)
	_, err = f.directory.ActiveChat(f.ctx, groupChatID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.directory.RegisterChat(f.ctx, groupChatID, "IT desk (renamed)")
	require.NoError(t, err)
	chat, err := f.directory.ActiveChat(f.ctx, groupChatID)
	require.NoError(t, err)
	assert.Equal(t, "IT desk (renamed)", chat.Title)

	require.NoError(t, f.directory.UnbindChat(f.ctx, f.topic.ID))
	topic, err := f.directory.GetTopic(f.ctx, f.topic.ID)
	require.NoError(t, err)
	assert.False(t, topic.Bound())

	require.NoError(t, f.directory.DeleteTopic(f.ctx, f.topic.ID))
	_, err = f.directory.Responders(f.ctx, f.topic.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, f.directory.DeactivateChat(f.ctx, 123456), "unknown chats are ignored")
}

func TestSetDisplayNameChangesRelayIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.directory.SetDisplayName(f.ctx, f.responder.ID, "  Support Team "))

	user, err := f.directory.GetUser(f.ctx, f.responder.ID)
	require.NoError(t, err)
	assert.Equal(t, "Support Team (@helpdesk)", user.Identity())

	require.NoError(t, f.directory.SetDisplayName(f.ctx, f.responder.ID, ""))
	user, err = f.directory.GetUser(f.ctx, f.responder.ID)
	require.NoError(t, err)
	assert.Nil(t, user.DisplayName)
}
