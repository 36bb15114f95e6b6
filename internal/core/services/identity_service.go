package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
	"github.com/xenwatch/identity-notify-service/internal/metrics"
)

// ProfileTables selects the profile capability for each role.
type ProfileTables map[domain.Role]ports.ProfileTable

type IdentityService struct {
	users   ports.UserRepository
	tables  ProfileTables
	cache   ports.ProfileCache
	logger  *zap.Logger
	metrics *metrics.Collector
}

var _ ports.IdentityService = (*IdentityService)(nil)

// NewIdentityService wires the resolver. cache may be nil.
func NewIdentityService(
	users ports.UserRepository,
	tables ProfileTables,
	cache ports.ProfileCache,
	logger *zap.Logger,
	m *metrics.Collector,
) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		users:   users,
		tables:  tables,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

// ResolveProfile follows the user's linkedId to its role profile. A missing or
// dangling pointer yields domain.ErrProfileNotFound. It always reads the
// profile table; the cache only serves the login path.
func (s *IdentityService) ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, user, false)
}

// RepairLinkedID re-derives or creates the profile a user should point at and
// stores its id in linkedId. It is a no-op when the pointer already resolves.
// An Unrepairable result is reported with a nil error; errors are reserved for
// storage failures.
func (s *IdentityService) RepairLinkedID(ctx context.Context, userID string) (ports.RepairResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return ports.RepairResult{}, err
	}
	return s.repair(ctx, user)
}

// ResolveForLogin is the login-time lookup: resolve, repair when the pointer is
// broken, resolve again. Students that cannot be repaired fail closed with
// domain.ErrStudentWithoutSchool; every other role degrades to a minimal
// profile.
func (s *IdentityService) ResolveForLogin(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.resolve(ctx, user, true)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return s.degrade(user, err)
	}

	result, err := s.repair(ctx, user)
	if err != nil {
		return s.degrade(user, err)
	}
	if !result.Repaired() {
		if user.Role == domain.RoleStudent {
			return nil, domain.ErrStudentWithoutSchool
		}
		return s.degrade(user, fmt.Errorf("%w: %s", domain.ErrRepairImpossible, result.Reason))
	}

	repaired, err := s.loadUser(ctx, userID)
	if err != nil {
		return s.degrade(user, err)
	}
	profile, err = s.resolve(ctx, repaired, true)
	if err != nil {
		return s.degrade(user, err)
	}
	return profile, nil
}

func (s *IdentityService) degrade(user *domain.User, cause error) (*domain.Profile, error) {
	if user.Role == domain.RoleStudent {
		return nil, cause
	}
	s.logger.Warn("serving minimal profile",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Error(cause),
	)
	return domain.MinimalProfile(user), nil
}

func (s *IdentityService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *IdentityService) table(role domain.Role) (ports.ProfileTable, error) {
	t, ok := s.tables[role]
	if !ok || role.ProfileScope() == domain.ScopeUnknown {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, role)
	}
	return t, nil
}

func (s *IdentityService) resolve(ctx context.Context, user *domain.User, useCache bool) (*domain.Profile, error) {
	table, err := s.table(user.Role)
	if err != nil {
		return nil, err
	}
	if !user.HasLinkedID() {
		return nil, domain.ErrProfileNotFound
	}
	linkedID := *user.LinkedID

	if useCache && s.cache != nil {
		cached, err := s.cache.Get(ctx, user.ID)
		if err != nil {
			s.logger.Debug("profile cache read failed", zap.String("user_id", user.ID), zap.Error(err))
		} else if cached != nil && cached.ID == linkedID {
			return cached, nil
		}
	}

	profile, err := table.Load(ctx, linkedID)
	if err != nil {
		return nil, fmt.Errorf("load %s profile %s: %w", user.Role, linkedID, err)
	}
	if profile == nil {
		s.invalidate(ctx, user.ID)
		return nil, domain.ErrProfileNotFound
	}
	profile.UserID = user.ID
	profile.Role = user.Role

	if s.cache != nil {
		if err := s.cache.Set(ctx, user.ID, profile); err != nil {
			s.logger.Debug("profile cache write failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return profile, nil
}

func (s *IdentityService) repair(ctx context.Context, user *domain.User) (ports.RepairResult, error) {
	result, err := s.doRepair(ctx, user)
	if err != nil {
		s.metrics.IdentityRepair(string(user.Role), "error")
		return result, err
	}
	s.metrics.IdentityRepair(string(user.Role), string(result.Outcome))

	log := s.logger.Info
	if !result.Repaired() {
		log = s.logger.Warn
	}
	log("linked profile repair",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("outcome", string(result.Outcome)),
		zap.String("profile_id", result.ProfileID),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

func (s *IdentityService) doRepair(ctx context.Context, user *domain.User) (ports.RepairResult, error) {
	table, err := s.table(user.Role)
	if err != nil {
		return ports.RepairResult{}, err
	}

	// A concurrent repair may already have fixed the pointer.
	if user.HasLinkedID() {
		current, err := table.Load(ctx, *user.LinkedID)
		if err != nil {
			return ports.RepairResult{}, fmt.Errorf("recheck linked profile: %w", err)
		}
		if current != nil {
			return ports.RepairResult{Outcome: ports.RepairAlreadyValid, ProfileID: current.ID}, nil
		}
	}

	scope := user.Role.ProfileScope()
	if scope == domain.ScopeSchool && !user.HasSchool() {
		return ports.RepairResult{
			Outcome: ports.RepairUnrepairable,
			Reason:  "no school affiliation",
		}, nil
	}

	outcome := ports.RepairAdopted
	profile, err := table.FindByNaturalKey(ctx, user)
	if err != nil {
		return ports.RepairResult{}, fmt.Errorf("find %s profile: %w", user.Role, err)
	}
	if profile == nil {
		if scope == domain.ScopeDirectory {
			return ports.RepairResult{
				Outcome: ports.RepairUnrepairable,
				Reason:  "no admin directory entry for email",
			}, nil
		}
		profile, err = table.Create(ctx, user)
		if errors.Is(err, domain.ErrRepairImpossible) {
			return ports.RepairResult{Outcome: ports.RepairUnrepairable, Reason: err.Error()}, nil
		}
		if err != nil {
			return ports.RepairResult{}, fmt.Errorf("create %s profile: %w", user.Role, err)
		}
		outcome = ports.RepairCreated
	}

	if err := s.users.UpdateLinkedID(ctx, user.ID, profile.ID); err != nil {
		return ports.RepairResult{}, fmt.Errorf("update linked id: %w", err)
	}
	s.invalidate(ctx, user.ID)
	return ports.RepairResult{Outcome: outcome, ProfileID: profile.ID}, nil
}

func (s *IdentityService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Debug("profile cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
