package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"taskdog/internal/audit"
)

// AuditRepository persists audit.Event into the audit_log table the
// task Repository's schema already provisions, sharing its connection
// so a single sqlite file backs both tables.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository wraps repo's connection for audit persistence.
func NewAuditRepository(repo *Repository) *AuditRepository {
	return &AuditRepository{db: repo.db}
}

// Append persists ev.
func (r *AuditRepository) Append(ctx context.Context, ev audit.Event) error {
	oldJSON, err := marshalValues(ev.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old_values: %w", err)
	}
	newJSON, err := marshalValues(ev.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new_values: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			timestamp, operation, resource_type, resource_id, resource_name,
			success, client_name, old_values_json, new_values_json, error_message
		) VALUES (?,?,?,?,?,?,?,?,?,?)
	`,
		ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Operation, ev.ResourceType,
		nullableInt(ev.ResourceID), nullableString(ev.ResourceName),
		boolToInt(ev.Success), nullableString(ev.ClientName),
		oldJSON, newJSON, nullableString(ev.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT timestamp, operation, resource_type, resource_id, resource_name,
			success, client_name, old_values_json, new_values_json, error_message
		FROM audit_log ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit_log: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			ts                                   string
			operation, resourceType               string
			resourceID                            sql.NullInt64
			resourceName                          sql.NullString
			success                                int
			clientName, oldJSON, newJSON, errorMsg sql.NullString
		)
		if err := rows.Scan(&ts, &operation, &resourceType, &resourceID, &resourceName,
			&success, &clientName, &oldJSON, &newJSON, &errorMsg); err != nil {
			return nil, fmt.Errorf("failed to scan audit_log row: %w", err)
		}

		ev := audit.Event{
			Operation:    operation,
			ResourceType: resourceType,
			Success:      success != 0,
		}
		if parsed, err := parseTime(ts); err == nil {
			ev.Timestamp = parsed
		}
		if resourceID.Valid {
			v := int(resourceID.Int64)
			ev.ResourceID = &v
		}
		if resourceName.Valid {
			v := resourceName.String
			ev.ResourceName = &v
		}
		if clientName.Valid {
			v := clientName.String
			ev.ClientName = &v
		}
		if errorMsg.Valid {
			v := errorMsg.String
			ev.ErrorMessage = &v
		}
		if ev.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old_values: %w", err)
		}
		if ev.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new_values: %w", err)
		}

		out = append(out, ev)
	}
	return out, rows.Err()
}

func marshalValues(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalValues(ns sql.NullString) (map[string]interface{}, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
