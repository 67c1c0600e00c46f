package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// Observation is one persisted telemetry report from a device.
type Observation struct {
	ID             int64           `json:"id"`
	DeviceID       string          `json:"device_id"`
	SensorReadings state.Readings  `json:"sensor_readings"`
	ActuatorStates state.Actuators `json:"actuator_states"`
	UptimeSeconds  *int64          `json:"uptime_seconds,omitempty"`
	SignalStrength *int            `json:"signal_strength,omitempty"`
	ReportedAt     time.Time       `json:"reported_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Repository persists device telemetry in SQLite and serves as the
// durable, lowest-precedence state source. Readings and actuator maps
// are stored as JSON columns; timestamps are RFC 3339 UTC strings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a telemetry repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *Repository: Repository instance ready for use
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert persists one observation.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - obs: Observation to persist; DeviceID and ReportedAt are required
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) Insert(ctx context.Context, obs Observation) error {
	if obs.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if obs.ReportedAt.IsZero() {
		return fmt.Errorf("reported_at is required")
	}

	readings := obs.SensorReadings
	if readings == nil {
		readings = state.Readings{}
	}
	readingsJSON, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("marshalling sensor readings: %w", err)
	}

	actuators := obs.ActuatorStates
	if actuators == nil {
		actuators = state.Actuators{}
	}
	actuatorsJSON, err := json.Marshal(actuators)
	if err != nil {
		return fmt.Errorf("marshalling actuator states: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO telemetry (device_id, sensor_readings, actuator_states, uptime_seconds, signal_strength, reported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		obs.DeviceID,
		string(readingsJSON),
		string(actuatorsJSON),
		nullableInt64(obs.UptimeSeconds),
		nullableInt(obs.SignalStrength),
		obs.ReportedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry: %w", err)
	}

	return nil
}

// QueryLatest returns the most recent observation for a device as a
// merge source snapshot. Implements state.DurableStore.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Unique device identifier
//
// Returns:
//   - *state.SourceSnapshot: Latest persisted view of the device
//   - error: state.ErrNotFound when no rows exist for the device
func (r *Repository) QueryLatest(ctx context.Context, deviceID string) (*state.SourceSnapshot, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT sensor_readings, actuator_states, uptime_seconds, signal_strength, reported_at
		 FROM telemetry
		 WHERE device_id = ?
		 ORDER BY reported_at DESC, id DESC
		 LIMIT 1`,
		deviceID,
	)

	var (
		readingsJSON  string
		actuatorsJSON string
		uptime        sql.NullInt64
		rssi          sql.NullInt64
		reportedAt    string
	)
	if err := row.Scan(&readingsJSON, &actuatorsJSON, &uptime, &rssi, &reportedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", state.ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("querying latest telemetry: %w", err)
	}

	snap := &state.SourceSnapshot{}

	if err := json.Unmarshal([]byte(readingsJSON), &snap.SensorReadings); err != nil {
		return nil, fmt.Errorf("unmarshalling sensor readings: %w", err)
	}
	if err := json.Unmarshal([]byte(actuatorsJSON), &snap.ActuatorStates); err != nil {
		return nil, fmt.Errorf("unmarshalling actuator states: %w", err)
	}
	if uptime.Valid {
		v := uptime.Int64
		snap.UptimeSeconds = &v
	}
	if rssi.Valid {
		v := int(rssi.Int64)
		snap.SignalStrength = &v
	}
	if ts, ok := state.ParseTimestamp(reportedAt); ok {
		snap.ReportedAt = &ts
	}

	return snap, nil
}

// Recent returns recent observations for a device, newest first.
// Used to build analysis context windows.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Unique device identifier
//   - limit: Maximum entries to return (default 20, max 200)
//
// Returns:
//   - []Observation: Observations ordered by reported_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *Repository) Recent(ctx context.Context, deviceID string, limit int) ([]Observation, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, sensor_readings, actuator_states, uptime_seconds, signal_strength, reported_at, created_at
		 FROM telemetry
		 WHERE device_id = ?
		 ORDER BY reported_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry: %w", err)
	}
	defer rows.Close()

	observations := make([]Observation, 0, limit)
	for rows.Next() {
		var (
			obs           Observation
			readingsJSON  string
			actuatorsJSON string
			uptime        sql.NullInt64
			rssi          sql.NullInt64
			reportedAt    string
			createdAt     string
		)
		if err := rows.Scan(&obs.ID, &obs.DeviceID, &readingsJSON, &actuatorsJSON, &uptime, &rssi, &reportedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry: %w", err)
		}

		if err := json.Unmarshal([]byte(readingsJSON), &obs.SensorReadings); err != nil {
			return nil, fmt.Errorf("unmarshalling sensor readings: %w", err)
		}
		if err := json.Unmarshal([]byte(actuatorsJSON), &obs.ActuatorStates); err != nil {
			return nil, fmt.Errorf("unmarshalling actuator states: %w", err)
		}
		if uptime.Valid {
			v := uptime.Int64
			obs.UptimeSeconds = &v
		}
		if rssi.Valid {
			v := int(rssi.Int64)
			obs.SignalStrength = &v
		}
		if ts, ok := state.ParseTimestamp(reportedAt); ok {
			obs.ReportedAt = ts
		}
		if ts, ok := state.ParseTimestamp(createdAt); ok {
			obs.CreatedAt = ts
		}

		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry: %w", err)
	}

	return observations, nil
}

// Prune deletes observations older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (rows older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM telemetry WHERE reported_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting telemetry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
