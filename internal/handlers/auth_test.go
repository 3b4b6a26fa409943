package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"drawchat/internal/auth"
	"drawchat/internal/mocks"
	"drawchat/internal/models"
	"drawchat/internal/repositories"
)

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/register", handler.Register)
	r.POST("/api/auth/login", handler.Login)
	r.GET("/api/auth/me", func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	}, handler.Me)
	return r
}

func TestRegisterSuccessFormatsUsername(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewAuthHandler(userRepo, auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	userRepo.On("CreateUser", mock.Anything, "Alice", "alice@example.com", mock.AnythingOfType("string")).
		Return(models.User{ID: 1, Username: "Alice"}, nil).Once()

	body := bytes.NewBufferString(`{"username":"alice","email":"Alice@Example.Com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestRegisterMissingFields(t *testing.T) {
	handler := NewAuthHandler(new(mocks.UserRepositoryMock), auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"username":"bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewAuthHandler(userRepo, auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	userRepo.On("CreateUser", mock.Anything, "Bob", "bob@example.com", mock.AnythingOfType("string")).
		Return(models.User{}, repositories.ErrUserExists).Once()

	body := bytes.NewBufferString(`{"username":"bob","email":"bob@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestLoginSuccessReturnsTokenAndUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	tokens := auth.NewTokenService("secret")
	handler := NewAuthHandler(userRepo, tokens)
	router := setupAuthRouter(handler)

	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	userRepo.On("GetByEmail", mock.Anything, "bob@example.com").
		Return(models.User{ID: 3, Username: "Bob", Email: "bob@example.com", PasswordHash: hash}, nil).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string            `json:"token"`
		User  models.PublicUser `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.User.ID)

	userID, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, userID)
}

func TestLoginWrongPassword(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewAuthHandler(userRepo, auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	userRepo.On("GetByEmail", mock.Anything, "bob@example.com").
		Return(models.User{ID: 3, PasswordHash: hash}, nil).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewAuthHandler(userRepo, auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"email":"ghost@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeReturnsCurrentUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewAuthHandler(userRepo, auth.NewTokenService("secret"))
	router := setupAuthRouter(handler)

	userRepo.On("GetByID", mock.Anything, 1).
		Return(models.User{ID: 1, Username: "Alice", Email: "alice@example.com", IsOnline: true}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Alice"`)
	assert.NotContains(t, rec.Body.String(), "password")
}
