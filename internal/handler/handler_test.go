package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/broker"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/quocanhngo/lighttalk/internal/testutil"
	"github.com/quocanhngo/lighttalk/pkg/auth"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memoryRevoker) Revoke(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = ttl
	return nil
}

func (m *memoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[token]
	return ok, nil
}

type stubPresigner struct{}

func (stubPresigner) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + key + "?X-Amz-Signature=abc", nil
}

func (stubPresigner) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTManager
	bus    *broker.MemoryBus
	notify *service.NotificationService
	db     *gorm.DB
	logs   *bytes.Buffer
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, 4)
	store := repository.NewStore(db)
	log := logger.Discard()
	logs := &bytes.Buffer{}
	handlerLog := logger.NewWithWriter(logs, "test", "info")

	bus := broker.NewMemoryBus()
	notifier := service.NewNotificationService(store, bus, notification.NewStubSender(log), log)
	t.Cleanup(notifier.Wait)

	opts := []service.Option{service.WithLogger(log)}
	rooms := service.NewChatRoomService(store, notifier, nil, 10, opts...)
	messages := service.NewMessageService(store, notifier, opts...)
	devices := service.NewDeviceService(store, opts...)
	uploads := service.NewUploadService(store, stubPresigner{}, 0, opts...)

	jwtManager := auth.NewJWTManager("handler-test", time.Hour)
	revoker := &memoryRevoker{revoked: map[string]time.Duration{}}

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtManager, revoker, log))
	RegisterRoutes(api, Handlers{
		Chat:     NewChatHandler(rooms, handlerLog),
		Messages: NewMessageHandler(messages, handlerLog),
		Auth:     NewAuthHandler(revoker, devices, handlerLog),
		Upload:   NewUploadHandler(uploads, handlerLog),
	})

	return &apiClient{t: t, router: router, jwt: jwtManager, bus: bus, notify: notifier, db: db, logs: logs}
}

func (a *apiClient) token(userID int64) string {
	token, err := a.jwt.GenerateToken(userID, fmt.Sprintf("user%d", userID))
	require.NoError(a.t, err)
	return token
}

func (a *apiClient) do(userID int64, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.doWithToken(a.token(userID), method, path, body)
}

func (a *apiClient) doWithToken(token, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestChatRoutes_GroupLifecycle(t *testing.T) {
	api := newAPI(t)

	w := api.do(1, http.MethodPost, "/api/v1/chats/group", model.CreateGroupChatRequest{Name: "Trip", MemberIDs: []int64{2, 3}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := decode[model.ChatRoomResponse](t, w)
	assert.Len(t, room.Members, 3)
	base := fmt.Sprintf("/api/v1/chats/%d", room.ID)

	w = api.do(2, http.MethodPost, base+"/members", model.InviteMembersRequest{UserIDs: []int64{4}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CH005", decode[model.ErrorResponse](t, w).Code)

	w = api.do(1, http.MethodPost, base+"/members", model.InviteMembersRequest{UserIDs: []int64{4}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[model.ChatRoomResponse](t, w).Members, 4)

	w = api.do(1, http.MethodPut, base+"/members/2/role", model.ChangeRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	name := "Busan"
	w = api.do(2, http.MethodPut, base, model.UpdateChatRoomRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Busan", *decode[model.ChatRoomResponse](t, w).Name)

	w = api.do(1, http.MethodDelete, base+"/members/4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(4, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(1, http.MethodPost, base+"/leave", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(2, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	after := decode[model.ChatRoomResponse](t, w)
	require.NotNil(t, after.OwnerID)
	assert.Equal(t, int64(2), *after.OwnerID, "the admin takes over")

	w = api.do(2, http.MethodGet, "/api/v1/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.ChatRoomResponse](t, w), 1)
}

func TestChatRoutes_Errors(t *testing.T) {
	api := newAPI(t)

	w := api.do(1, http.MethodGet, "/api/v1/chats/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(1, http.MethodGet, "/api/v1/chats/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CH001", decode[model.ErrorResponse](t, w).Code)

	w = api.do(1, http.MethodPost, "/api/v1/chats", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "C002", decode[model.ErrorResponse](t, w).Code)

	w = api.do(1, http.MethodPost, "/api/v1/chats", model.CreateDirectChatRequest{TargetUserID: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMessageRoutes(t *testing.T) {
	api := newAPI(t)

	w := api.do(1, http.MethodPost, "/api/v1/chats", model.CreateDirectChatRequest{TargetUserID: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	room := decode[model.ChatRoomResponse](t, w)
	base := fmt.Sprintf("/api/v1/chats/%d", room.ID)

	var ids []int64
	for i := 0; i < 3; i++ {
		w = api.do(1, http.MethodPost, base+"/messages", model.SendMessageRequest{Content: fmt.Sprintf("m%d", i)})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decode[model.MessageResponse](t, w).ID)
	}

	w = api.do(1, http.MethodPost, base+"/messages", model.SendMessageRequest{Content: "x", Type: model.MessageTypeSystem})
	assert.Equal(t, http.StatusBadRequest, w.Code, "clients cannot send system messages")

	w = api.do(2, http.MethodGet, base+"/messages?size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[model.MessagePageResponse](t, w)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	w = api.do(2, http.MethodGet, fmt.Sprintf("%s/messages?cursor=%d", base, *page.NextCursor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[model.MessagePageResponse](t, w).Messages, 1)

	w = api.do(2, http.MethodPut, base+"/read", model.MarkAsReadRequest{MessageID: ids[1]})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(2, http.MethodGet, "/api/v1/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[[]model.ChatRoomResponse](t, w)[0].UnreadCount)

	w = api.do(2, http.MethodDelete, fmt.Sprintf("%s/messages/%d", base, ids[2]), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "M003", decode[model.ErrorResponse](t, w).Code)

	w = api.do(1, http.MethodDelete, fmt.Sprintf("%s/messages/%d", base, ids[2]), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(1, http.MethodDelete, fmt.Sprintf("%s/messages/%d", base, ids[2]), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthRoutes_LogoutRevokesToken(t *testing.T) {
	api := newAPI(t)
	token := api.token(1)

	w := api.doWithToken(token, http.MethodPost, "/api/v1/devices", model.RegisterDeviceRequest{FCMToken: "fcm-1", DeviceType: "android"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.doWithToken(token, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.doWithToken(token, http.MethodGet, "/api/v1/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadRoutes(t *testing.T) {
	api := newAPI(t)

	w := api.do(1, http.MethodPost, "/api/v1/upload/presign", model.PresignRequest{
		Purpose:       model.UploadPurposeProfile,
		ContentType:   "image/jpeg",
		ContentLength: 2048,
		FileName:      "me.jpg",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[model.PresignResponse](t, w)
	assert.Contains(t, resp.UploadURL, "profiles/1/")
	assert.Equal(t, "https://cdn.example.com/"+resp.ObjectKey, resp.PublicURL)

	w = api.do(1, http.MethodPost, "/api/v1/upload/presign", model.PresignRequest{
		Purpose:       model.UploadPurposeProfile,
		ContentType:   "application/pdf",
		ContentLength: 2048,
		FileName:      "cv.pdf",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UP001", decode[model.ErrorResponse](t, w).Code)

	noStorage := NewUploadHandler(nil, logger.Discard())
	router := gin.New()
	router.POST("/presign", noStorage.Presign)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/presign", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInternalErrorsAreLoggedAndHidden(t *testing.T) {
	api := newAPI(t)

	sqlDB, err := api.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := api.do(1, http.MethodGet, "/api/v1/chats", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[model.ErrorResponse](t, w)
	assert.Equal(t, "C001", body.Code)
	assert.NotContains(t, w.Body.String(), "database is closed")

	assert.Contains(t, api.logs.String(), "request failed")
	assert.Contains(t, api.logs.String(), "/api/v1/chats")
}

func TestPathIDRejectsBadValues(t *testing.T) {
	api := newAPI(t)

	for _, raw := range []string{"abc", "0", "-3"} {
		w := api.do(1, http.MethodGet, "/api/v1/chats/"+raw, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
		body := decode[model.ErrorResponse](t, w)
		assert.Equal(t, "C002", body.Code)
		assert.Equal(t, "invalid roomId", body.Error)
	}
	assert.Empty(t, api.logs.String())
}
