package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/codec"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// FileRepository persists the panel state to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) so the file
// has the same shape as a GetStatus response.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu serialises read-modify-write cycles on the state file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// ArmingStatus returns the stored arming status.
func (r *FileRepository) ArmingStatus(context.Context) (domain.ArmingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return domain.ArmingDisarmed, err
	}

	return state.ArmingStatus, nil
}

// SetArmingStatus stores the arming status.
func (r *FileRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	return r.update(func(state *domain.Snapshot) error {
		state.ArmingStatus = status

		return nil
	})
}

// AlarmStatus returns the stored alarm status.
func (r *FileRepository) AlarmStatus(context.Context) (domain.AlarmStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return domain.AlarmNone, err
	}

	return state.AlarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *FileRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	return r.update(func(state *domain.Snapshot) error {
		state.AlarmStatus = status

		return nil
	})
}

// Sensors returns the stored sensors ordered by name.
func (r *FileRepository) Sensors(context.Context) ([]domain.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return nil, err
	}

	return state.Sensors, nil
}

// AddSensor registers a sensor, replacing any sensor with the same name.
func (r *FileRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	return r.UpdateSensor(ctx, sensor)
}

// RemoveSensor unregisters the sensor with the same name.
func (r *FileRepository) RemoveSensor(_ context.Context, sensor domain.Sensor) error {
	return r.update(func(state *domain.Snapshot) error {
		for i, s := range state.Sensors {
			if s.Name == sensor.Name {
				state.Sensors = append(state.Sensors[:i], state.Sensors[i+1:]...)

				return nil
			}
		}

		return fmt.Errorf("%w: %q", ErrSensorNotFound, sensor.Name)
	})
}

// UpdateSensor stores the sensor, inserting it when missing.
func (r *FileRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	return r.update(func(state *domain.Snapshot) error {
		for i, s := range state.Sensors {
			if s.Name == sensor.Name {
				state.Sensors[i] = sensor

				return nil
			}
		}

		state.Sensors = append(state.Sensors, sensor)
		domain.SortSensors(state.Sensors)

		return nil
	})
}

// update loads the state, applies fn and writes the result back.
func (r *FileRepository) update(fn func(state *domain.Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return err
	}

	if err = fn(state); err != nil {
		return err
	}

	return r.save(state)
}

// load reads the state from disk. A missing file yields the default state.
func (r *FileRepository) load() (*domain.Snapshot, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return new(domain.Snapshot), nil
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var protoState structpb.Struct
	if err = protojson.Unmarshal(contents, &protoState); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	state, err := codec.SnapshotFromStruct(&protoState)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	// The cat flag belongs to the running engine, not to the stored state.
	state.CatDetected = false

	return state, nil
}

// save writes the state to disk using JSON representation.
func (r *FileRepository) save(state *domain.Snapshot) error {
	protoState, err := codec.SnapshotToStruct(state)
	if err != nil {
		return err
	}

	// The cat flag is not persisted.
	delete(protoState.GetFields(), codec.FieldCatDetected)

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(protoState)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
