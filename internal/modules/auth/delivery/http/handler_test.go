package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"kmbp.app/ratingbot/internal/modules/auth/dto"
	authService "kmbp.app/ratingbot/internal/modules/auth/service"
)

type adminSet map[int64]bool

func (a adminSet) IsAdmin(ctx context.Context, userID int64) bool {
	return a[userID]
}

func newLoginRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc := authService.NewAuthService(adminSet{7: true}, nil, authService.Config{
		Secret:       "secret",
		PasswordHash: string(hash),
	})

	r := gin.New()
	r.POST("/login", NewAuthHandler(svc).Login)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginHandler(t *testing.T) {
	r := newLoginRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"user_id":7,"password":"hunter2"}`, http.StatusOK},
		{"missing password", `{"user_id":7}`, http.StatusBadRequest},
		{"malformed json", `{"user_id":`, http.StatusBadRequest},
		{"wrong password", `{"user_id":7,"password":"x"}`, http.StatusUnauthorized},
		{"not an admin", `{"user_id":9,"password":"hunter2"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestLoginHandlerReturnsToken(t *testing.T) {
	w := post(newLoginRouter(t), `{"user_id":7,"password":"hunter2"}`)

	var resp dto.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.UserID != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
}
