package model

import (
	"encoding/json"
	"fmt"
)

// TriageExtraction is the structured incident summary produced by a triage
// provider. Every field is optional; nil means the provider did not supply it.
type TriageExtraction struct {
	IncidentType     *string  `json:"incident_type,omitempty"`
	IncidentSubtype  *string  `json:"incident_subtype,omitempty"`
	SeverityScore    *float64 `json:"severity_score,omitempty"`
	Summary          *string  `json:"summary,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	PersonsInvolved  *int     `json:"persons_involved,omitempty"`
	ImmediateThreats []string `json:"immediate_threats,omitempty"`
	Location         *string  `json:"location,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// UnmarshalJSON decodes field by field. A field with the wrong shape is
// dropped instead of failing the whole payload, and "confidence_score" is
// accepted as an alias of "confidence".
func (e *TriageExtraction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding triage extraction: %w", err)
	}

	var out TriageExtraction
	out.IncidentType = decodeField[string](raw, "incident_type")
	out.IncidentSubtype = decodeField[string](raw, "incident_subtype")
	out.SeverityScore = decodeField[float64](raw, "severity_score")
	out.Summary = decodeField[string](raw, "summary")
	out.Confidence = decodeField[float64](raw, "confidence")
	if out.Confidence == nil {
		out.Confidence = decodeField[float64](raw, "confidence_score")
	}
	out.PersonsInvolved = decodeField[int](raw, "persons_involved")
	out.Location = decodeField[string](raw, "location")
	if threats := decodeField[[]string](raw, "immediate_threats"); threats != nil {
		out.ImmediateThreats = *threats
	}
	if recs := decodeField[[]string](raw, "recommendations"); recs != nil {
		out.Recommendations = *recs
	}

	*e = out
	return nil
}

func decodeField[T any](raw map[string]json.RawMessage, key string) *T {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil
	}
	return &v
}
