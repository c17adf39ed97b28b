package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/triage"
)

type mockCallFile struct {
	Calls []mockCall `yaml:"calls"`
}

type mockLocation struct {
	Address    string  `yaml:"address"`
	City       string  `yaml:"city"`
	State      string  `yaml:"state"`
	Latitude   float64 `yaml:"latitude"`
	Longitude  float64 `yaml:"longitude"`
	Confidence float64 `yaml:"confidence"`
}

type mockCall struct {
	ID                string       `yaml:"id"`
	CallerNumber      string       `yaml:"caller_number"`
	Status            string       `yaml:"status"`
	CallStatus        string       `yaml:"call_status"`
	IncidentType      string       `yaml:"incident_type"`
	IncidentSubtype   string       `yaml:"incident_subtype"`
	SeverityScore     float64      `yaml:"severity_score"`
	CallerLocation    mockLocation `yaml:"caller_location"`
	TopEmotion        string       `yaml:"top_emotion"`
	EmotionIntensity  float64      `yaml:"emotion_intensity"`
	CallerCondition   string       `yaml:"caller_condition"`
	Transcript        string       `yaml:"transcript"`
	AISummary         string       `yaml:"ai_summary"`
	AIConfidence      float64      `yaml:"ai_confidence"`
	AIRecommendation  string       `yaml:"ai_recommendation"`
	PersonsInvolved   int          `yaml:"persons_involved"`
	ImmediateThreats  []string     `yaml:"immediate_threats"`
	PriorityCode      string       `yaml:"priority_code"`
	CreatedMinutesAgo int          `yaml:"created_minutes_ago"`
	UpdatedMinutesAgo *int         `yaml:"updated_minutes_ago"`
}

// LoadMockCalls reads demo calls from a YAML file. Timestamps are given in
// minutes before now. Severity is always derived from severity_score; other
// missing fields get the same defaults as built calls.
func LoadMockCalls(path string, now time.Time) ([]model.EmergencyCall, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock calls: %w", err)
	}

	var file mockCallFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing mock calls %s: %w", path, err)
	}

	calls := make([]model.EmergencyCall, 0, len(file.Calls))
	seen := make(map[string]struct{}, len(file.Calls))
	for i, mc := range file.Calls {
		if mc.ID == "" {
			return nil, fmt.Errorf("mock call %d: id is required", i)
		}
		if _, dup := seen[mc.ID]; dup {
			return nil, fmt.Errorf("mock call %d: duplicate id %q", i, mc.ID)
		}
		seen[mc.ID] = struct{}{}
		calls = append(calls, mc.toModel(now))
	}
	return calls, nil
}

func (mc mockCall) toModel(now time.Time) model.EmergencyCall {
	score := min(max(mc.SeverityScore, 0), 100)
	createdAt := now.Add(-time.Duration(mc.CreatedMinutesAgo) * time.Minute)
	updatedAt := createdAt
	if mc.UpdatedMinutesAgo != nil {
		updatedAt = now.Add(-time.Duration(*mc.UpdatedMinutesAgo) * time.Minute)
	}

	call := model.EmergencyCall{
		ID:              mc.ID,
		CallerNumber:    mc.CallerNumber,
		Status:          model.Status(orDefault(mc.Status, string(model.StatusActive))),
		CallStatus:      model.CallStatus(orDefault(mc.CallStatus, string(model.CallStatusInProgress))),
		IncidentType:    orDefault(mc.IncidentType, triage.DefaultIncidentType),
		IncidentSubtype: orDefault(mc.IncidentSubtype, triage.DefaultIncidentSubtype),
		Severity:        triage.SeverityFor(score),
		SeverityScore:   score,
		CallerLocation: model.Location{
			Address:    orDefault(mc.CallerLocation.Address, triage.PendingAddress),
			City:       mc.CallerLocation.City,
			State:      mc.CallerLocation.State,
			Latitude:   mc.CallerLocation.Latitude,
			Longitude:  mc.CallerLocation.Longitude,
			Confidence: mc.CallerLocation.Confidence,
			Geocoded:   true,
		},
		TopEmotion:       orDefault(mc.TopEmotion, triage.DefaultTopEmotion),
		EmotionIntensity: mc.EmotionIntensity,
		CallerCondition:  model.CallerCondition(mc.CallerCondition),
		Transcript:       mc.Transcript,
		AISummary:        orDefault(mc.AISummary, triage.DefaultSummary),
		AIConfidence:     mc.AIConfidence,
		AIRecommendation: orDefault(mc.AIRecommendation, triage.DefaultRecommendation),
		PersonsInvolved:  mc.PersonsInvolved,
		ImmediateThreats: mc.ImmediateThreats,
		PriorityCode:     mc.PriorityCode,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}

	if mc.CallerLocation.Latitude == 0 && mc.CallerLocation.Longitude == 0 {
		call.CallerLocation.Latitude = triage.DefaultBaseLatitude
		call.CallerLocation.Longitude = triage.DefaultBaseLongitude
		call.CallerLocation.Confidence = triage.PlaceholderConfidence
		call.CallerLocation.Geocoded = false
	}
	if call.CallerCondition == "" {
		call.CallerCondition = triage.CallerConditionFor(score)
	}
	if call.AIConfidence == 0 {
		call.AIConfidence = triage.DefaultAIConfidence
	}
	if call.PersonsInvolved < 1 {
		call.PersonsInvolved = triage.DefaultPersonsInvolved
	}
	if call.ImmediateThreats == nil {
		call.ImmediateThreats = []string{}
	}
	return call
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
