package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Redis key suffixes appended to the configured prefix.
const (
	redisArmingKey  = "arming"
	redisAlarmKey   = "alarm"
	redisSensorsKey = "sensors"
)

// RedisRepository keeps the panel state in Redis.
// Statuses are plain string keys; sensors live in one hash keyed by name.
type RedisRepository struct {
	// client is the shared Redis connection pool.
	client *redis.Client
	// prefix is prepended to every key.
	prefix string
}

// sensorRecord is the JSON value stored for each sensor hash field.
type sensorRecord struct {
	Type   domain.SensorType `json:"type"`
	Active bool              `json:"active"`
}

// NewRedisClient creates a Redis client for the given address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

// Ping checks the Redis connection.
func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

// Close releases the underlying client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// ArmingStatus returns the stored arming status, DISARMED when unset.
func (r *RedisRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	value, err := r.getString(ctx, redisArmingKey)
	if err != nil || value == "" {
		return domain.ArmingDisarmed, err
	}

	status, err := domain.ParseArmingStatus(value)
	if err != nil {
		return domain.ArmingDisarmed, fmt.Errorf("decode arming status: %w", err)
	}

	return status, nil
}

// SetArmingStatus stores the arming status.
func (r *RedisRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if err := r.client.Set(ctx, r.key(redisArmingKey), status.String(), 0).Err(); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	return nil
}

// AlarmStatus returns the stored alarm status, NO_ALARM when unset.
func (r *RedisRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	value, err := r.getString(ctx, redisAlarmKey)
	if err != nil || value == "" {
		return domain.AlarmNone, err
	}

	status, err := domain.ParseAlarmStatus(value)
	if err != nil {
		return domain.AlarmNone, fmt.Errorf("decode alarm status: %w", err)
	}

	return status, nil
}

// SetAlarmStatus stores the alarm status.
func (r *RedisRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := r.client.Set(ctx, r.key(redisAlarmKey), status.String(), 0).Err(); err != nil {
		return fmt.Errorf("set alarm status: %w", err)
	}

	return nil
}

// Sensors returns the stored sensors ordered by name.
func (r *RedisRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	values, err := r.client.HGetAll(ctx, r.key(redisSensorsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("get sensors: %w", err)
	}

	result := make([]domain.Sensor, 0, len(values))

	for name, raw := range values {
		var record sensorRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode sensor %q: %w", name, err)
		}

		result = append(result, domain.Sensor{
			Name:   name,
			Type:   record.Type,
			Active: record.Active,
		})
	}

	domain.SortSensors(result)

	return result, nil
}

// AddSensor registers a sensor, replacing any sensor with the same name.
func (r *RedisRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	return r.UpdateSensor(ctx, sensor)
}

// RemoveSensor unregisters the sensor with the same name.
func (r *RedisRepository) RemoveSensor(ctx context.Context, sensor domain.Sensor) error {
	removed, err := r.client.HDel(ctx, r.key(redisSensorsKey), sensor.Name).Result()
	if err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	if removed == 0 {
		return fmt.Errorf("%w: %q", ErrSensorNotFound, sensor.Name)
	}

	return nil
}

// UpdateSensor stores the sensor.
func (r *RedisRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	data, err := json.Marshal(sensorRecord{
		Type:   sensor.Type,
		Active: sensor.Active,
	})
	if err != nil {
		return fmt.Errorf("encode sensor: %w", err)
	}

	if err = r.client.HSet(ctx, r.key(redisSensorsKey), sensor.Name, data).Err(); err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	return nil
}

// getString reads a string key, treating redis.Nil as empty.
func (r *RedisRepository) getString(ctx context.Context, suffix string) (string, error) {
	value, err := r.client.Get(ctx, r.key(suffix)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}

		return "", fmt.Errorf("get %s: %w", suffix, err)
	}

	return value, nil
}

func (r *RedisRepository) key(suffix string) string {
	return r.prefix + suffix
}
