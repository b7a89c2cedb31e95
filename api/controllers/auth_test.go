package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gamestore-backend/internal/auth"
	"github.com/angelmondragon/gamestore-backend/internal/users"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
)

type stubAuth struct {
	got auth.LoginRequest
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.got = req
	if req.Password != "correct-horse-battery" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &auth.LoginResponse{
		AccessToken: "token-1",
		ExpiresAt:   time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		User:        &users.OperatorDTO{ID: 1, Email: req.Email, Role: enums.UserRoleAdmin, IsActive: true},
	}, nil
}

func (s *stubAuth) CreateOperator(ctx context.Context, in auth.CreateOperatorInput) (*users.OperatorDTO, error) {
	return nil, nil
}

func TestAdminLogin(t *testing.T) {
	svc := &stubAuth{}
	h := AdminLogin(svc, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login",
		strings.NewReader(`{"email":"ops@example.com","password":"correct-horse-battery"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body auth.LoginResponse
	decodeData(t, rec, &body)
	assert.Equal(t, "token-1", body.AccessToken)
	assert.Equal(t, "ops@example.com", svc.got.Email)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login",
		strings.NewReader(`{"email":"ops@example.com","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login",
		strings.NewReader(`{"email":"not-an-email","password":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
