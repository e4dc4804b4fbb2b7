package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/service"
)

type stubUserSvc struct {
	getByIDFn func(id uint) (*domain.User, error)
}

func (s *stubUserSvc) GetByID(id uint) (*domain.User, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(id)
	}
	return nil, errors.New("not implemented")
}

func (s *stubUserSvc) List(page, pageSize int) (*repository.PageResult[domain.User], error) {
	return nil, errors.New("not implemented")
}

func userReqWithClaims(r *http.Request, sub string) *http.Request {
	claims := &security.Claims{}
	claims.Subject = sub
	ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}

func decodeErrCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	errObj, _ := env["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestUserHandlerMeErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		sub      string
		svcErr   error
		wantCode int
		wantErr  string
	}{
		{name: "missing claims", wantCode: http.StatusUnauthorized, wantErr: "UNAUTHORIZED"},
		{name: "non numeric subject", sub: "not-a-number", wantCode: http.StatusUnauthorized, wantErr: "UNAUTHORIZED"},
		{name: "unknown user", sub: "7", svcErr: service.ErrUserNotFound, wantCode: http.StatusNotFound, wantErr: "NOT_FOUND"},
		{name: "backend failure", sub: "7", svcErr: errors.New("db down"), wantCode: http.StatusInternalServerError, wantErr: "INTERNAL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewUserHandler(&stubUserSvc{getByIDFn: func(id uint) (*domain.User, error) {
				return nil, tc.svcErr
			}})
			req := httptest.NewRequest(http.MethodGet, "/me/", nil)
			if tc.sub != "" {
				req = userReqWithClaims(req, tc.sub)
			}
			rr := httptest.NewRecorder()
			h.Me(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if code := decodeErrCode(t, rr); code != tc.wantErr {
				t.Fatalf("expected error code %s, got %s", tc.wantErr, code)
			}
		})
	}
}

func TestUserHandlerMeReturnsProfileWithoutSecrets(t *testing.T) {
	h := NewUserHandler(&stubUserSvc{getByIDFn: func(id uint) (*domain.User, error) {
		if id != 42 {
			t.Fatalf("unexpected user id %d", id)
		}
		return &domain.User{ID: 42, Email: "donor@example.com", FullName: "Dana Donor", PasswordHash: "secret-hash", IsActive: true}, nil
	}})
	rr := httptest.NewRecorder()
	h.Me(rr, userReqWithClaims(httptest.NewRequest(http.MethodGet, "/me/", nil), "42"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data["email"] != "donor@example.com" {
		t.Fatalf("unexpected body %+v", env)
	}
	if _, leaked := env.Data["password_hash"]; leaked {
		t.Fatal("password hash must not be serialized")
	}
}
