package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"senha-system/internal/status"
	"senha-system/models"
	"senha-system/utils"
)

// RegistryService manages the set of service counters and their operator
// bindings.
type RegistryService struct {
	Redis *redis.Client
	Bus   *BusService
}

func NewRegistryService(redisClient *redis.Client, bus *BusService) *RegistryService {
	return &RegistryService{Redis: redisClient, Bus: bus}
}

func (s *RegistryService) Get(ctx context.Context, id string) (*models.Counter, error) {
	fields, err := s.Redis.HGetAll(ctx, counterKey(id)).Result()
	if err != nil {
		return nil, err
	}
	c := models.CounterFromRedisMap(fields)
	if c == nil {
		return nil, status.ErrCounterNotFound
	}
	return c, nil
}

// List returns all counters ordered by display number.
func (s *RegistryService) List(ctx context.Context) ([]models.Counter, error) {
	ids, err := s.Redis.SMembers(ctx, countersKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.Counter, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayNumber < out[j].DisplayNumber
	})
	return out, nil
}

// Create registers a new counter. A zero display number auto-assigns one
// above the current maximum.
func (s *RegistryService) Create(ctx context.Context, displayNumber int, operatorID string, serviceTypes []string) (*models.Counter, error) {
	if displayNumber == 0 {
		existing, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range existing {
			if c.DisplayNumber > displayNumber {
				displayNumber = c.DisplayNumber
			}
		}
		displayNumber++
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return nil, err
	}

	c := &models.Counter{
		ID:            id,
		DisplayNumber: displayNumber,
		OperatorID:    operatorID,
		ServiceTypes:  serviceTypes,
		State:         models.CounterFree,
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, counterKey(id), c.ToRedisArgs()...)
	pipe.SAdd(ctx, countersKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, c)
	return c, nil
}

// Bind assigns an operator to the counter, replacing any previous binding.
func (s *RegistryService) Bind(ctx context.Context, counterID, operatorID string) (*models.Counter, error) {
	return s.update(ctx, counterID, func(c *models.Counter) {
		c.OperatorID = operatorID
	})
}

// Unbind releases the counter's operator binding.
func (s *RegistryService) Unbind(ctx context.Context, counterID string) (*models.Counter, error) {
	return s.update(ctx, counterID, func(c *models.Counter) {
		c.OperatorID = ""
	})
}

// SetServiceTypes replaces the subset of service types the counter serves.
func (s *RegistryService) SetServiceTypes(ctx context.Context, counterID string, serviceTypes []string) (*models.Counter, error) {
	return s.update(ctx, counterID, func(c *models.Counter) {
		c.ServiceTypes = serviceTypes
	})
}

func (s *RegistryService) update(ctx context.Context, counterID string, mutate func(*models.Counter)) (*models.Counter, error) {
	c, err := s.Get(ctx, counterID)
	if err != nil {
		return nil, err
	}
	mutate(c)
	if err := s.Redis.HSet(ctx, counterKey(counterID), c.ToRedisArgs()...).Err(); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, c)
	return c, nil
}

// EnsureCounterForOperator returns the operator's counter, auto-provisioning
// one (next free display number, serving all active service types) if the
// operator has none. Operators are never blocked behind manual admin setup.
func (s *RegistryService) EnsureCounterForOperator(ctx context.Context, operatorID string) (*models.Counter, error) {
	counters, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range counters {
		if counters[i].OperatorID == operatorID {
			return &counters[i], nil
		}
	}

	serviceTypes, err := s.Redis.HKeys(ctx, serviceTypesKey).Result()
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, 0, operatorID, serviceTypes)
}

// UpsertServiceType stores one service-type definition in the shared
// catalog.
func (s *RegistryService) UpsertServiceType(ctx context.Context, st *models.ServiceType) error {
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	return s.Redis.HSet(ctx, serviceTypesKey, st.ID, data).Err()
}

// ServiceTypes lists the shared service-type catalog.
func (s *RegistryService) ServiceTypes(ctx context.Context) ([]models.ServiceType, error) {
	raw, err := s.Redis.HGetAll(ctx, serviceTypesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceType, 0, len(raw))
	for _, v := range raw {
		st, err := models.ServiceTypeFromJSON(v)
		if err != nil {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *RegistryService) publishUpdated(ctx context.Context, c *models.Counter) {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.Bus.Publish(publishCtx, models.EventCounterUpdated, c); err != nil {
		slog.Warn("publish counter update", "counter", c.ID, "error", err)
	}
}
