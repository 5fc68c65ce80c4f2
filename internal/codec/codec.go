package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Field names shared by every encoded message.
const (
	FieldArmingStatus = "arming_status"
	FieldAlarmStatus  = "alarm_status"
	FieldCatDetected  = "cat_detected"
	FieldSensors      = "sensors"
	FieldName         = "name"
	FieldType         = "type"
	FieldActive       = "active"
)

// ErrMalformed is returned when a Struct does not have the expected shape.
var ErrMalformed = errors.New("malformed message")

// SnapshotToStruct encodes a snapshot.
func SnapshotToStruct(s *domain.Snapshot) (*structpb.Struct, error) {
	if s == nil {
		s = new(domain.Snapshot)
	}

	sensors := make([]any, 0, len(s.Sensors))
	for _, sensor := range s.Sensors {
		sensors = append(sensors, sensorToMap(sensor))
	}

	st, err := structpb.NewStruct(map[string]any{
		FieldArmingStatus: s.ArmingStatus.String(),
		FieldAlarmStatus:  s.AlarmStatus.String(),
		FieldCatDetected:  s.CatDetected,
		FieldSensors:      sensors,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return st, nil
}

// SnapshotFromStruct decodes a snapshot. Missing statuses default to
// DISARMED and NO_ALARM; sensors come back ordered by name.
func SnapshotFromStruct(st *structpb.Struct) (*domain.Snapshot, error) {
	result := new(domain.Snapshot)
	if st == nil {
		return result, nil
	}

	fields := st.GetFields()

	if v, ok := fields[FieldArmingStatus]; ok {
		status, err := domain.ParseArmingStatus(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", FieldArmingStatus, err)
		}

		result.ArmingStatus = status
	}

	if v, ok := fields[FieldAlarmStatus]; ok {
		status, err := domain.ParseAlarmStatus(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", FieldAlarmStatus, err)
		}

		result.AlarmStatus = status
	}

	result.CatDetected = fields[FieldCatDetected].GetBoolValue()

	for i, v := range fields[FieldSensors].GetListValue().GetValues() {
		sensorStruct := v.GetStructValue()
		if sensorStruct == nil {
			return nil, fmt.Errorf("%w: sensor #%d is not an object", ErrMalformed, i)
		}

		sensor, err := SensorFromStruct(sensorStruct)
		if err != nil {
			return nil, fmt.Errorf("decode sensor #%d: %w", i, err)
		}

		result.Sensors = append(result.Sensors, sensor)
	}

	domain.SortSensors(result.Sensors)

	return result, nil
}

// SensorToStruct encodes a single sensor.
func SensorToStruct(s domain.Sensor) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(sensorToMap(s))
	if err != nil {
		return nil, fmt.Errorf("encode sensor: %w", err)
	}

	return st, nil
}

// SensorFromStruct decodes and validates a single sensor.
func SensorFromStruct(st *structpb.Struct) (domain.Sensor, error) {
	fields := st.GetFields()

	sensorType, err := domain.ParseSensorType(fields[FieldType].GetStringValue())
	if err != nil {
		return domain.Sensor{}, err
	}

	sensor := domain.Sensor{
		Name:   fields[FieldName].GetStringValue(),
		Type:   sensorType,
		Active: fields[FieldActive].GetBoolValue(),
	}

	if err = sensor.Validate(); err != nil {
		return domain.Sensor{}, err
	}

	return sensor, nil
}

func sensorToMap(s domain.Sensor) map[string]any {
	return map[string]any{
		FieldName:   s.Name,
		FieldType:   string(s.Type),
		FieldActive: s.Active,
	}
}
