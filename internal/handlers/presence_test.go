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
)

func setupPresenceRouter(handler *PresenceHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/presence/heartbeat", handler.Heartbeat)
	r.GET("/presence/online", handler.Online)
	return r
}

func TestHeartbeatSuccess(t *testing.T) {
	presenceRepo := new(mocks.PresenceRepositoryMock)
	handler := NewPresenceHandler(presenceRepo, new(mocks.UserRepositoryMock))
	router := setupPresenceRouter(handler)

	presenceRepo.On("Heartbeat", mock.Anything, 1, models.StatusOnline, mock.AnythingOfType("time.Time")).
		Return(models.PresenceRecord{UserID: 1, Status: models.StatusOnline, LastSeenAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/presence/heartbeat", bytes.NewBufferString(`{"status":"online"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusOnline, resp["status"])
	presenceRepo.AssertExpectations(t)
}

func TestHeartbeatUnknownStatus(t *testing.T) {
	presenceRepo := new(mocks.PresenceRepositoryMock)
	handler := NewPresenceHandler(presenceRepo, new(mocks.UserRepositoryMock))
	router := setupPresenceRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/presence/heartbeat", bytes.NewBufferString(`{"status":"busy"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	presenceRepo.AssertNotCalled(t, "Heartbeat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnlineReturnsOnlyEffectiveOnline(t *testing.T) {
	presenceRepo := new(mocks.PresenceRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewPresenceHandler(presenceRepo, userRepo)
	router := setupPresenceRouter(handler)

	// Fresh dnd and idle rows are visible statuses but still not part of
	// the online roster.
	now := time.Now()
	presenceRepo.On("ListAll", mock.Anything).Return([]models.PresenceRecord{
		{UserID: 1, Status: models.StatusOnline, LastSeenAt: now},
		{UserID: 2, Status: models.StatusDnd, LastSeenAt: now},
		{UserID: 3, Status: models.StatusIdle, LastSeenAt: now},
		{UserID: 4, Status: models.StatusOnline, LastSeenAt: now.Add(-10 * time.Minute)},
		{UserID: 5, Status: models.StatusOffline, LastSeenAt: now},
	}, nil).Once()
	userRepo.On("BulkByIDs", mock.Anything, []int{1}).
		Return([]models.User{{ID: 1, Name: "me"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/online", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []struct {
			UserID int    `json:"user_id"`
			Status string `json:"status"`
		} `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, 1, resp.Users[0].UserID)
	assert.Equal(t, models.StatusOnline, resp.Users[0].Status)
	presenceRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}
