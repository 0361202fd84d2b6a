package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"kmbp.app/ratingbot/internal/modules/auth/dto"
	"kmbp.app/ratingbot/pkg/apperror"
)

type staticAdmins map[int64]bool

func (s staticAdmins) IsAdmin(ctx context.Context, userID int64) bool {
	return s[userID]
}

type fakeIssuer struct {
	token string
	err   error
}

func (f fakeIssuer) GenerateSearchToken() (string, error) {
	return f.token, f.err
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc := NewAuthService(staticAdmins{7: true}, fakeIssuer{token: "search-key"}, Config{
		Secret:       "secret",
		PasswordHash: hashPassword(t, "hunter2"),
	})

	resp, err := svc.Login(context.Background(), dto.LoginInput{UserID: 7, Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.SearchToken != "search-key" {
		t.Fatalf("unexpected response %+v", resp)
	}

	userID, err := svc.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if userID != 7 {
		t.Fatalf("subject = %d, want 7", userID)
	}
}

func TestLoginRejections(t *testing.T) {
	hash := hashPassword(t, "hunter2")

	tests := []struct {
		name   string
		hash   string
		input  dto.LoginInput
		target error
	}{
		{"wrong password", hash, dto.LoginInput{UserID: 7, Password: "nope"}, apperror.ErrUnauthorized},
		{"not an admin", hash, dto.LoginInput{UserID: 8, Password: "hunter2"}, apperror.ErrForbidden},
		{"api disabled", "", dto.LoginInput{UserID: 7, Password: "hunter2"}, apperror.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(staticAdmins{7: true}, nil, Config{Secret: "secret", PasswordHash: tt.hash})
			_, err := svc.Login(context.Background(), tt.input)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestLoginSurvivesSearchTokenFailure(t *testing.T) {
	svc := NewAuthService(staticAdmins{7: true}, fakeIssuer{err: errors.New("no key")}, Config{
		Secret:       "secret",
		PasswordHash: hashPassword(t, "hunter2"),
	})

	resp, err := svc.Login(context.Background(), dto.LoginInput{UserID: 7, Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.SearchToken != "" {
		t.Fatalf("search token should be empty, got %q", resp.SearchToken)
	}
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	cfg := Config{Secret: "secret", PasswordHash: hashPassword(t, "pw"), TokenTTL: time.Hour}
	svc := NewAuthService(staticAdmins{7: true}, nil, cfg).(*authService)

	issued := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	token, _, err := svc.generateToken(7)
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := svc.ParseToken(token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}

	other := NewAuthService(staticAdmins{}, nil, Config{Secret: "other"}).(*authService)
	other.now = func() time.Time { return issued }
	if _, err := other.ParseToken(token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}
}
