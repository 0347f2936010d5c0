package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetBySubject(ctx context.Context, subject string) (models.User, error) {
	args := m.Called(ctx, subject)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProviderFields(ctx context.Context, userID int, name, email, avatarURL string) error {
	args := m.Called(ctx, userID, name, email, avatarURL)
	return args.Error(0)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) Heartbeat(ctx context.Context, userID int, status string, now time.Time) (models.PresenceRecord, error) {
	args := m.Called(ctx, userID, status, now)
	var rec models.PresenceRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.PresenceRecord)
	}
	return rec, args.Error(1)
}

func (m *PresenceRepositoryMock) Get(ctx context.Context, userID int) (models.PresenceRecord, error) {
	args := m.Called(ctx, userID)
	var rec models.PresenceRecord
	if val := args.Get(0); val != nil {
		rec = val.(models.PresenceRecord)
	}
	return rec, args.Error(1)
}

func (m *PresenceRepositoryMock) BulkByUserIDs(ctx context.Context, ids []int) ([]models.PresenceRecord, error) {
	args := m.Called(ctx, ids)
	var recs []models.PresenceRecord
	if val := args.Get(0); val != nil {
		recs = val.([]models.PresenceRecord)
	}
	return recs, args.Error(1)
}

func (m *PresenceRepositoryMock) ListAll(ctx context.Context) ([]models.PresenceRecord, error) {
	args := m.Called(ctx)
	var recs []models.PresenceRecord
	if val := args.Get(0); val != nil {
		recs = val.([]models.PresenceRecord)
	}
	return recs, args.Error(1)
}

func (m *PresenceRepositoryMock) Bootstrap(ctx context.Context, userID int, lastSeenAt time.Time) error {
	args := m.Called(ctx, userID, lastSeenAt)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) ForceOffline(ctx context.Context, userID int, now time.Time) error {
	args := m.Called(ctx, userID, now)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int, imageURL *string) (models.Conversation, error) {
	args := m.Called(ctx, creatorID, name, memberIDs, imageURL)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetMember(ctx context.Context, conversationID, userID int) (models.ConversationMember, error) {
	args := m.Called(ctx, conversationID, userID)
	var member models.ConversationMember
	if val := args.Get(0); val != nil {
		member = val.(models.ConversationMember)
	}
	return member, args.Error(1)
}

func (m *ConversationRepositoryMock) ListMembers(ctx context.Context, conversationID int) ([]models.ConversationMember, error) {
	args := m.Called(ctx, conversationID)
	var members []models.ConversationMember
	if val := args.Get(0); val != nil {
		members = val.([]models.ConversationMember)
	}
	return members, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) MarkRead(ctx context.Context, conversationID, userID int, lastReadMessageID *int) error {
	args := m.Called(ctx, conversationID, userID, lastReadMessageID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Leave(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content, replyToID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Meta(ctx context.Context, conversationID, userID int) (models.ConversationMeta, error) {
	args := m.Called(ctx, conversationID, userID)
	var meta models.ConversationMeta
	if val := args.Get(0); val != nil {
		meta = val.(models.ConversationMeta)
	}
	return meta, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) ListForMessage(ctx context.Context, messageID int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

func (m *ReactionRepositoryMock) ListForMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

type TypingRepositoryMock struct {
	mock.Mock
}

func (m *TypingRepositoryMock) Upsert(ctx context.Context, conversationID, userID int, now time.Time) error {
	args := m.Called(ctx, conversationID, userID, now)
	return args.Error(0)
}

func (m *TypingRepositoryMock) Delete(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *TypingRepositoryMock) ListForConversation(ctx context.Context, conversationID int) ([]models.TypingIndicator, error) {
	args := m.Called(ctx, conversationID)
	var rows []models.TypingIndicator
	if val := args.Get(0); val != nil {
		rows = val.([]models.TypingIndicator)
	}
	return rows, args.Error(1)
}

type MessageCacheMock struct {
	mock.Mock
}

func (m *MessageCacheMock) Get(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageCacheMock) Set(ctx context.Context, conversationID int, msgs []models.Message) error {
	args := m.Called(ctx, conversationID, msgs)
	return args.Error(0)
}

func (m *MessageCacheMock) Invalidate(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.PresenceRepository = (*PresenceRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.TypingRepository = (*TypingRepositoryMock)(nil)
var _ cache.MessageCache = (*MessageCacheMock)(nil)
