package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"kmbp.app/ratingbot/internal/modules/auth/dto"
	"kmbp.app/ratingbot/pkg/apperror"
)

const DefaultTokenTTL = 24 * time.Hour

// AdminChecker decides whether a chat user may use the admin API.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// SearchTokenIssuer hands out scoped search keys alongside the session token.
type SearchTokenIssuer interface {
	GenerateSearchToken() (string, error)
}

type AuthService interface {
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	ParseToken(tokenString string) (int64, error)
}

type Config struct {
	Secret       string
	PasswordHash string
	TokenTTL     time.Duration
}

type authService struct {
	admins AdminChecker
	search SearchTokenIssuer
	cfg    Config
	now    func() time.Time
}

// NewAuthService wires the admin API login. search may be nil when the index is disabled.
func NewAuthService(admins AdminChecker, search SearchTokenIssuer, cfg Config) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &authService{admins: admins, search: search, cfg: cfg, now: time.Now}
}

var errInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	if s.cfg.PasswordHash == "" {
		return nil, apperror.Forbidden("admin API is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !s.admins.IsAdmin(ctx, input.UserID) {
		return nil, apperror.Forbidden("admin access required")
	}

	token, expiresAt, err := s.generateToken(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	resp := &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		UserID:      input.UserID,
	}
	if s.search != nil {
		if searchToken, err := s.search.GenerateSearchToken(); err != nil {
			log.Printf("⚠️ [auth] search token unavailable: %v", err)
		} else {
			resp.SearchToken = searchToken
		}
	}
	return resp, nil
}

func (s *authService) generateToken(userID int64) (string, int64, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt.Unix(), nil
}

// ParseToken validates an HS256 token and returns its subject as a chat user id.
func (s *authService) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: invalid or expired token", apperror.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, fmt.Errorf("%w: invalid token claims", apperror.ErrUnauthorized)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid token subject", apperror.ErrUnauthorized)
	}
	return userID, nil
}
