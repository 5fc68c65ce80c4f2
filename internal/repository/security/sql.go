package security

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// State keys in the system_state table.
const (
	sqlArmingKey = "arming_status"
	sqlAlarmKey  = "alarm_status"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS system_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sensors (
	name   TEXT PRIMARY KEY,
	type   TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 0
);
`

// SQLRepository keeps the panel state in a SQL database.
// The queries target SQLite; OpenSQLite is the usual constructor.
type SQLRepository struct {
	// db is the shared connection pool.
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)

	repo := NewSQLRepository(db)
	if err = repo.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return repo, nil
}

// NewSQLRepository wraps an open database without migrating it.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Migrate creates the tables when they do not exist.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

// Close closes the database.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// ArmingStatus returns the stored arming status, DISARMED when unset.
func (r *SQLRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	value, err := r.getState(ctx, sqlArmingKey)
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
func (r *SQLRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	return r.setState(ctx, sqlArmingKey, status.String())
}

// AlarmStatus returns the stored alarm status, NO_ALARM when unset.
func (r *SQLRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	value, err := r.getState(ctx, sqlAlarmKey)
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
func (r *SQLRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	return r.setState(ctx, sqlAlarmKey, status.String())
}

// Sensors returns the stored sensors ordered by name.
func (r *SQLRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, type, active FROM sensors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []domain.Sensor

	for rows.Next() {
		var (
			sensor     domain.Sensor
			sensorType string
		)

		if err = rows.Scan(&sensor.Name, &sensorType, &sensor.Active); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		sensor.Type = domain.SensorType(sensorType)
		result = append(result, sensor)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	domain.SortSensors(result)

	return result, nil
}

// AddSensor registers a sensor, replacing any sensor with the same name.
func (r *SQLRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	return r.UpdateSensor(ctx, sensor)
}

// RemoveSensor unregisters the sensor with the same name.
func (r *SQLRepository) RemoveSensor(ctx context.Context, sensor domain.Sensor) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sensors WHERE name = ?`, sensor.Name)
	if err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrSensorNotFound, sensor.Name)
	}

	return nil
}

// UpdateSensor stores the sensor.
func (r *SQLRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensors (name, type, active) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET type = excluded.type, active = excluded.active`,
		sensor.Name, string(sensor.Type), sensor.Active,
	)
	if err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	return nil
}

// getState reads one system_state value, treating a missing row as empty.
func (r *SQLRepository) getState(ctx context.Context, key string) (string, error) {
	var value string

	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("get %s: %w", key, err)
	}

	return value, nil
}

func (r *SQLRepository) setState(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}
