package services

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"senha-system/config"
	"senha-system/internal/status"
	"senha-system/models"
)

// PolicyService owns the shared system policy hash. The queue core reads it
// on every decision; the settings screens mutate it through Put.
type PolicyService struct {
	Redis  *redis.Client
	Bus    *BusService
	config *config.Config
}

func NewPolicyService(redisClient *redis.Client, bus *BusService, cfg *config.Config) *PolicyService {
	return &PolicyService{
		Redis:  redisClient,
		Bus:    bus,
		config: cfg,
	}
}

// Get returns the active policy, falling back to defaults while no policy
// has been written yet.
func (s *PolicyService) Get(ctx context.Context) (*models.SystemPolicy, error) {
	fields, err := s.Redis.HGetAll(ctx, policyKey).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		p := models.DefaultPolicy()
		return &p, nil
	}
	return models.PolicyFromRedisMap(fields), nil
}

// Put validates and stores a new policy, then broadcasts policy_updated so
// every instance picks it up. When an admin PIN hash is configured the
// caller must supply the matching PIN.
func (s *PolicyService) Put(ctx context.Context, p *models.SystemPolicy, pin string) error {
	if s.config.AdminPINHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPINHash), []byte(pin)); err != nil {
			return status.ErrBadPIN
		}
	}

	if !models.ValidTemplate(p.FormattingTemplate) || !models.ValidAnnouncementMode(p.AnnouncementMode) {
		return status.ErrInvalidPolicy
	}

	if err := s.Redis.HSet(ctx, policyKey, p.ToRedisArgs()...).Err(); err != nil {
		return err
	}

	if err := s.Bus.Publish(ctx, models.EventPolicyUpdated, p); err != nil {
		slog.Warn("publish policy update", "error", err)
	}
	return nil
}
