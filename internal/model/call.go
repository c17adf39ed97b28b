package model

import (
	"fmt"
	"time"
)

type (
	Severity        string
	CallerCondition string
	CallStatus      string
	Status          string
)

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CallerConditionCalm       CallerCondition = "calm"
	CallerConditionUnclear    CallerCondition = "unclear"
	CallerConditionDistressed CallerCondition = "distressed"
	CallerConditionPanicked   CallerCondition = "panicked"
)

// Status is the dispatch lifecycle of an incident.
const (
	StatusActive     Status = "active"
	StatusDispatched Status = "dispatched"
	StatusResolved   Status = "resolved"
)

// CallStatus is the state of the voice call itself.
const (
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusDropped    CallStatus = "dropped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDispatched, StatusResolved:
		return true
	}
	return false
}

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusInProgress, CallStatusCompleted, CallStatusDropped:
		return true
	}
	return false
}

type Location struct {
	Address    string  `json:"address"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confidence float64 `json:"confidence"`
	Geocoded   bool    `json:"geocoded"`
}

// EmergencyCall is the fused call record shown to dispatchers.
// Severity is always the bucket of SeverityScore.
type EmergencyCall struct {
	ID               string          `json:"id"`
	CallerNumber     string          `json:"caller_number"`
	Status           Status          `json:"status"`
	CallStatus       CallStatus      `json:"call_status"`
	IncidentType     string          `json:"incident_type"`
	IncidentSubtype  string          `json:"incident_subtype"`
	Severity         Severity        `json:"severity"`
	SeverityScore    float64         `json:"severity_score"`
	CallerLocation   Location        `json:"caller_location"`
	TopEmotion       string          `json:"top_emotion"`
	EmotionIntensity float64         `json:"emotion_intensity"`
	CallerCondition  CallerCondition `json:"caller_condition"`
	Transcript       string          `json:"transcript"`
	AISummary        string          `json:"ai_summary"`
	AIConfidence     float64         `json:"ai_confidence"`
	AIRecommendation string          `json:"ai_recommendation"`
	PersonsInvolved  int             `json:"persons_involved"`
	ImmediateThreats []string        `json:"immediate_threats"`
	PriorityCode     string          `json:"priority_code,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TimeElapsed renders the age of a call the way the dispatcher queue shows it.
func TimeElapsed(createdAt, now time.Time) string {
	minutes := int(now.Sub(createdAt).Minutes())
	switch {
	case minutes < 1:
		return "Just now"
	case minutes == 1:
		return "1 min ago"
	case minutes < 60:
		return fmt.Sprintf("%d min ago", minutes)
	}

	hours := minutes / 60
	if hours == 1 {
		return "1 hr ago"
	}
	return fmt.Sprintf("%d hrs ago", hours)
}
