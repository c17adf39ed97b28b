package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"kwik.app/dispatch/core/db"
	"kwik.app/dispatch/internal/model"
)

const callColumns = `id, caller_number, status, call_status, incident_type, incident_subtype,
	severity, severity_score, caller_location, top_emotion, emotion_intensity, caller_condition,
	transcript, ai_summary, ai_confidence, ai_recommendation, persons_involved, immediate_threats,
	priority_code, created_at, updated_at`

const upsertCallSQL = `INSERT INTO emergency_calls (` + callColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO UPDATE SET
	caller_number = EXCLUDED.caller_number,
	status = EXCLUDED.status,
	call_status = EXCLUDED.call_status,
	incident_type = EXCLUDED.incident_type,
	incident_subtype = EXCLUDED.incident_subtype,
	severity = EXCLUDED.severity,
	severity_score = EXCLUDED.severity_score,
	caller_location = EXCLUDED.caller_location,
	top_emotion = EXCLUDED.top_emotion,
	emotion_intensity = EXCLUDED.emotion_intensity,
	caller_condition = EXCLUDED.caller_condition,
	transcript = EXCLUDED.transcript,
	ai_summary = EXCLUDED.ai_summary,
	ai_confidence = EXCLUDED.ai_confidence,
	ai_recommendation = EXCLUDED.ai_recommendation,
	persons_involved = EXCLUDED.persons_involved,
	immediate_threats = EXCLUDED.immediate_threats,
	priority_code = EXCLUDED.priority_code,
	updated_at = EXCLUDED.updated_at`

const getCallSQL = `SELECT ` + callColumns + ` FROM emergency_calls WHERE id = $1`

const listCallsSQL = `SELECT ` + callColumns + ` FROM emergency_calls
ORDER BY created_at DESC, id ASC
LIMIT $1`

const updateCallStatusSQL = `UPDATE emergency_calls
SET status = $2, call_status = $3, updated_at = $4
WHERE id = $1
RETURNING ` + callColumns

type postgresCallStore struct {
	conn db.DBTX
}

func newPostgresCallStore(conn db.DBTX) CallStore {
	return &postgresCallStore{conn: conn}
}

func (s *postgresCallStore) Save(ctx context.Context, call *model.EmergencyCall) error {
	location, err := json.Marshal(call.CallerLocation)
	if err != nil {
		return fmt.Errorf("encoding caller location: %w", err)
	}
	threats := call.ImmediateThreats
	if threats == nil {
		threats = []string{}
	}
	threatsJSON, err := json.Marshal(threats)
	if err != nil {
		return fmt.Errorf("encoding immediate threats: %w", err)
	}

	_, err = s.conn.Exec(ctx, upsertCallSQL,
		call.ID,
		call.CallerNumber,
		string(call.Status),
		string(call.CallStatus),
		call.IncidentType,
		call.IncidentSubtype,
		string(call.Severity),
		call.SeverityScore,
		location,
		call.TopEmotion,
		call.EmotionIntensity,
		string(call.CallerCondition),
		call.Transcript,
		call.AISummary,
		call.AIConfidence,
		call.AIRecommendation,
		call.PersonsInvolved,
		threatsJSON,
		call.PriorityCode,
		call.CreatedAt,
		call.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving call %s: %w", call.ID, err)
	}
	return nil
}

func (s *postgresCallStore) GetByID(ctx context.Context, id string) (*model.EmergencyCall, error) {
	call, err := scanCall(s.conn.QueryRow(ctx, getCallSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting call %s: %w", id, err)
	}
	return call, nil
}

func (s *postgresCallStore) List(ctx context.Context, limit int) ([]model.EmergencyCall, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.conn.Query(ctx, listCallsSQL, limitArg)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	result := []model.EmergencyCall{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		result = append(result, *call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	return result, nil
}

func (s *postgresCallStore) UpdateStatus(ctx context.Context, id string, status model.Status, callStatus model.CallStatus, at time.Time) (*model.EmergencyCall, error) {
	call, err := scanCall(s.conn.QueryRow(ctx, updateCallStatusSQL, id, string(status), string(callStatus), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating call %s status: %w", id, err)
	}
	return call, nil
}

func scanCall(row pgx.Row) (*model.EmergencyCall, error) {
	var (
		call                                    model.EmergencyCall
		status, callStatus, severity, condition string
		location, threats                       []byte
	)

	err := row.Scan(
		&call.ID,
		&call.CallerNumber,
		&status,
		&callStatus,
		&call.IncidentType,
		&call.IncidentSubtype,
		&severity,
		&call.SeverityScore,
		&location,
		&call.TopEmotion,
		&call.EmotionIntensity,
		&condition,
		&call.Transcript,
		&call.AISummary,
		&call.AIConfidence,
		&call.AIRecommendation,
		&call.PersonsInvolved,
		&threats,
		&call.PriorityCode,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	call.Status = model.Status(status)
	call.CallStatus = model.CallStatus(callStatus)
	call.Severity = model.Severity(severity)
	call.CallerCondition = model.CallerCondition(condition)

	if err := json.Unmarshal(location, &call.CallerLocation); err != nil {
		return nil, fmt.Errorf("decoding caller location: %w", err)
	}
	call.ImmediateThreats = []string{}
	if len(threats) > 0 {
		if err := json.Unmarshal(threats, &call.ImmediateThreats); err != nil {
			return nil, fmt.Errorf("decoding immediate threats: %w", err)
		}
	}
	return &call, nil
}
