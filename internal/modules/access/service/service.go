package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/modules/access/dto"
	"kmbp.app/ratingbot/internal/modules/access/repository"
	"kmbp.app/ratingbot/pkg/apperror"
	"kmbp.app/ratingbot/pkg/cache"
	"kmbp.app/ratingbot/pkg/sanitizer"
)

const DefaultBanReason = "No reason given"

// MembershipChecker asks the chat platform whether userID belongs to chatID.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

type AccessService interface {
	Check(ctx context.Context, actor entity.Actor) (*dto.Decision, error)
	IsAdmin(ctx context.Context, userID int64) bool
	Status(ctx context.Context, userID int64) (*dto.UserStatus, error)
	Ban(ctx context.Context, admin entity.Actor, userID int64, reason string) (*entity.BannedUser, error)
	Unban(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]entity.BannedUser, error)
	FindBan(ctx context.Context, userID int64) (*entity.BannedUser, error)
}

type Options struct {
	AdminChatID   int64
	SelfID        int64
	MembershipTTL time.Duration
}

type accessService struct {
	repo    repository.BanRepository
	checker MembershipChecker
	opts    Options
	admins  *cache.TTLCache[int64, bool]
}

func NewAccessService(repo repository.BanRepository, checker MembershipChecker, opts Options) (AccessService, error) {
	if opts.MembershipTTL <= 0 {
		opts.MembershipTTL = time.Minute
	}
	admins, err := cache.New[int64, bool](1024, opts.MembershipTTL)
	if err != nil {
		return nil, fmt.Errorf("membership cache: %w", err)
	}
	return &accessService{repo: repo, checker: checker, opts: opts, admins: admins}, nil
}

// Check runs the gate policy in order: service accounts, admins, bans.
// A failed membership lookup demotes the actor to non-admin instead of failing.
func (s *accessService) Check(ctx context.Context, actor entity.Actor) (*dto.Decision, error) {
	if actor.IsBot || (s.opts.SelfID != 0 && actor.ID == s.opts.SelfID) {
		return &dto.Decision{Allowed: true}, nil
	}

	if s.IsAdmin(ctx, actor.ID) {
		return &dto.Decision{Allowed: true, Admin: true}, nil
	}

	ban, err := s.repo.Find(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("ban lookup: %w", err)
	}
	if ban != nil {
		return &dto.Decision{Allowed: false, Reason: ban.Reason, BannedAt: ban.BannedAt}, nil
	}
	return &dto.Decision{Allowed: true}, nil
}

func (s *accessService) IsAdmin(ctx context.Context, userID int64) bool {
	if cached, ok := s.admins.Get(userID); ok {
		return cached
	}
	if s.checker == nil {
		return false
	}

	member, err := s.checker.IsMember(ctx, s.opts.AdminChatID, userID)
	if err != nil {
		log.Printf("⚠️ [access] admin membership check for %d failed: %v", userID, err)
		return false
	}
	s.admins.Set(userID, member)
	return member
}

func (s *accessService) Status(ctx context.Context, userID int64) (*dto.UserStatus, error) {
	status := &dto.UserStatus{UserID: userID, Kind: dto.StatusNormal}
	if s.IsAdmin(ctx, userID) {
		status.Kind = dto.StatusAdmin
		return status, nil
	}

	ban, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ban != nil {
		status.Kind = dto.StatusBanned
		status.Reason = ban.Reason
		status.BannedAt = ban.BannedAt
	}
	return status, nil
}

func (s *accessService) Ban(ctx context.Context, admin entity.Actor, userID int64, reason string) (*entity.BannedUser, error) {
	if userID <= 0 {
		return nil, apperror.Invalid("User id must be a positive number")
	}
	if s.IsAdmin(ctx, userID) {
		return nil, apperror.Forbidden("Admins can't be banned")
	}

	existing, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict(fmt.Sprintf("User %d is already banned", userID))
	}

	reason = sanitizer.Line(reason)
	if reason == "" {
		reason = DefaultBanReason
	}

	ban := &entity.BannedUser{
		UserID:           userID,
		BannedBy:         admin.ID,
		BannedByUsername: strings.TrimPrefix(admin.Username, "@"),
		Reason:           reason,
	}
	if err := s.repo.Create(ctx, ban); err != nil {
		return nil, err
	}
	return ban, nil
}

func (s *accessService) Unban(ctx context.Context, userID int64) error {
	err := s.repo.Delete(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFound(fmt.Sprintf("User %d is not banned", userID))
	}
	return err
}

func (s *accessService) List(ctx context.Context) ([]entity.BannedUser, error) {
	return s.repo.List(ctx)
}

func (s *accessService) FindBan(ctx context.Context, userID int64) (*entity.BannedUser, error) {
	return s.repo.Find(ctx, userID)
}
