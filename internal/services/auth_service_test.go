package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthConfig(t *testing.T) {
	t.Helper()
	viper.Set("jwt.secret_key", "test-secret-key")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig(t)

	hash, err := hashPassword("password123")
	require.NoError(t, err)
	assert.Contains(t, hash, "$")

	assert.True(t, verifyPassword("password123", hash))
	assert.False(t, verifyPassword("wrong-password", hash))
	assert.False(t, verifyPassword("password123", "not-a-valid-hash"))

	// Fresh salt every time.
	other, err := hashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestGenerateJWT(t *testing.T) {
	setupAuthConfig(t)

	tokenString, err := generateJWT(42)
	require.NoError(t, err)

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret-key"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["user_id"])
	assert.NotNil(t, claims["exp"])
}

func TestRegister(t *testing.T) {
	setupAuthConfig(t)

	t.Run("registers a new user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs("user@example.com", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/register",
			strings.NewReader(`{"email": "User@Example.com", "password": "password123"}`))
		rr := httptest.NewRecorder()

		service.Register(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp AuthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, 1, resp.User.ID)
		assert.Equal(t, "user@example.com", resp.User.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(sql.ErrConnDone)

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/register",
			strings.NewReader(`{"email": "user@example.com", "password": "password123"}`))
		rr := httptest.NewRecorder()

		service.Register(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "User already exists", decodeError(t, rr))
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/register",
			strings.NewReader(`{"email": "not-an-email", "password": "password123"}`))
		rr := httptest.NewRecorder()

		service.Register(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Validation failed", decodeError(t, rr))
	})

	t.Run("rejects short password", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/register",
			strings.NewReader(`{"email": "user@example.com", "password": "short"}`))
		rr := httptest.NewRecorder()

		service.Register(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects trailing JSON objects", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/register",
			strings.NewReader(`{"email": "user@example.com", "password": "password123"}{"extra": true}`))
		rr := httptest.NewRecorder()

		service.Register(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLogin(t *testing.T) {
	setupAuthConfig(t)

	t.Run("valid credentials", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		hash, err := hashPassword("password123")
		require.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, password FROM users").
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password"}).
				AddRow(1, "user@example.com", hash))

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/login",
			strings.NewReader(`{"email": "user@example.com", "password": "password123"}`))
		rr := httptest.NewRecorder()

		service.Login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp AuthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, 1, resp.User.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		hash, err := hashPassword("password123")
		require.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, password FROM users").
			WithArgs("user@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password"}).
				AddRow(1, "user@example.com", hash))

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/login",
			strings.NewReader(`{"email": "user@example.com", "password": "wrong-password"}`))
		rr := httptest.NewRecorder()

		service.Login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, rr))
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT id, email, password FROM users").
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("POST", "/api/v1/auth/login",
			strings.NewReader(`{"email": "ghost@example.com", "password": "password123"}`))
		rr := httptest.NewRecorder()

		service.Login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, rr))
	})
}

func TestLogout_WithoutRedis(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)
	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rr := httptest.NewRecorder()

	service.Logout(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Logout successful", resp["message"])
}

func TestGetUserAccount(t *testing.T) {
	t.Run("returns user details", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT id, email FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
				AddRow(1, "user@example.com"))

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("GET", "/api/v1/auth/account", nil)
		req = req.WithContext(context.WithValue(req.Context(), "userID", 1))
		rr := httptest.NewRecorder()

		service.GetUserAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var user User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
		assert.Equal(t, "user@example.com", user.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing context is unauthorized", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)
		req := httptest.NewRequest("GET", "/api/v1/auth/account", nil)
		rr := httptest.NewRecorder()

		service.GetUserAccount(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
