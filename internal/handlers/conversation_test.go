package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func intPtr(v int) *int { return &v }

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/conversations/direct", handler.StartDirect)
	r.POST("/conversations/group", handler.CreateGroup)
	r.GET("/conversations", handler.List)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	r.DELETE("/conversations/:conversation_id/members/me", handler.Leave)
	return r
}

func TestStartDirectSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(convRepo, userRepo, new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	userRepo.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2, Name: "bob"}, nil).Once()
	convRepo.On("GetOrCreateDirect", mock.Anything, 1, 2).Return(models.Conversation{ID: 10, Type: models.ConversationDM}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp["conversation_id"])
	userRepo.AssertExpectations(t)
	convRepo.AssertExpectations(t)
}

func TestStartDirectWithSelf(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertNotCalled(t, "GetOrCreateDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartDirectUnknownUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), userRepo, new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	userRepo.On("GetByID", mock.Anything, 99).Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"user_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestCreateGroupSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(convRepo, userRepo, new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	userRepo.On("BulkByIDs", mock.Anything, []int{2, 3}).Return([]models.User{{ID: 2}, {ID: 3}}, nil).Once()
	convRepo.On("CreateGroup", mock.Anything, 1, "weekend plans", []int{2, 3}, (*string)(nil)).
		Return(models.Conversation{ID: 7, Type: models.ConversationGroup}, nil).Once()

	body := bytes.NewBufferString(`{"name":"weekend plans","member_ids":[2,3]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/group", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestCreateGroupUnknownMember(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewConversationHandler(convRepo, userRepo, new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	userRepo.On("BulkByIDs", mock.Anything, []int{2, 99}).Return([]models.User{{ID: 2}}, nil).Once()

	body := bytes.NewBufferString(`{"name":"g","member_ids":[2,99]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/group", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupTooSmall(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("CreateGroup", mock.Anything, 1, "solo", []int(nil), (*string)(nil)).
		Return(models.Conversation{}, repositories.ErrGroupTooSmall).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/group", bytes.NewBufferString(`{"name":"solo"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestListEnrichesDMAndGroup(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	presenceRepo := new(mocks.PresenceRepositoryMock)
	handler := NewConversationHandler(convRepo, userRepo, presenceRepo, nil)
	router := setupConversationRouter(handler)

	dm := models.ConversationSummary{
		Conversation: models.Conversation{ID: 5, Type: models.ConversationDM, User1ID: intPtr(1), User2ID: intPtr(2)},
		UnreadCount:  4,
	}
	group := models.ConversationSummary{
		Conversation: models.Conversation{ID: 8, Type: models.ConversationGroup, ParticipantIDs: []int64{1, 2, 3}},
	}
	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.ConversationSummary{dm, group}, nil).Once()
	userRepo.On("BulkByIDs", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Name: "bob"}}, nil).Once()
	presenceRepo.On("BulkByUserIDs", mock.Anything, []int{2}).
		Return([]models.PresenceRecord{{UserID: 2, Status: models.StatusOnline, LastSeenAt: time.Now()}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, 2, resp.Conversations[0].OtherUserID)
	assert.Equal(t, "bob", resp.Conversations[0].OtherUserName)
	assert.Equal(t, models.StatusOnline, resp.Conversations[0].OtherUserStatus)
	assert.Equal(t, 4, resp.Conversations[0].UnreadCount)
	assert.Equal(t, 3, resp.Conversations[1].MemberCount)
	convRepo.AssertExpectations(t)
}

func TestListStalePeerReadsOffline(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	presenceRepo := new(mocks.PresenceRepositoryMock)
	handler := NewConversationHandler(convRepo, userRepo, presenceRepo, nil)
	router := setupConversationRouter(handler)

	dm := models.ConversationSummary{
		Conversation: models.Conversation{ID: 5, Type: models.ConversationDM, User1ID: intPtr(1), User2ID: intPtr(2)},
	}
	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.ConversationSummary{dm}, nil).Once()
	userRepo.On("BulkByIDs", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Name: "bob"}}, nil).Once()
	presenceRepo.On("BulkByUserIDs", mock.Anything, []int{2}).
		Return([]models.PresenceRecord{{UserID: 2, Status: models.StatusOnline, LastSeenAt: time.Now().Add(-10 * time.Minute)}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, models.StatusOffline, resp.Conversations[0].OtherUserStatus)
}

func TestMarkReadWithoutBody(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("MarkRead", mock.Anything, 5, 1, (*int)(nil)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestMarkReadWithWatermark(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("MarkRead", mock.Anything, 5, 1, mock.MatchedBy(func(id *int) bool {
		return id != nil && *id == 42
	})).Return(nil).Once()

	body := bytes.NewBufferString(`{"last_read_message_id":42}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestLeaveGroupSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("Leave", mock.Anything, 8, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/8/members/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestLeaveDMRejected(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("Leave", mock.Anything, 5, 1).Return(repositories.ErrNotGroup).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/members/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestLeaveNotMember(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.UserRepositoryMock), new(mocks.PresenceRepositoryMock), nil)
	router := setupConversationRouter(handler)

	convRepo.On("Leave", mock.Anything, 8, 1).Return(repositories.ErrMemberNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/8/members/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	convRepo.AssertExpectations(t)
}
