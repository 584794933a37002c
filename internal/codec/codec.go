// Package codec embeds outbreak alert payloads in the free-text notes of a report.
//
// An encoded note is Sentinel followed by a compact JSON object. Anything that does
// not carry the sentinel or fails to parse is an ordinary note, never an error.
package codec

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"crop-outbreaks/internal/model"
)

// Sentinel is a stable wire marker. Do not change it.
const Sentinel = "OUTBREAK_ALERT::"

const (
	DefaultSummary  = "Potential outbreak detected nearby."
	defaultRadiusKm = 25.0
	minRadiusKm     = 1.0
)

type Payload struct {
	Summary      string    `json:"summary"`
	Severity     *string   `json:"severity"`
	RadiusKm     float64   `json:"radiusKm"`
	NearbyCount  int       `json:"nearbyCount"`
	SourcePostID string    `json:"sourcePostId"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// now is swapped in tests.
var now = time.Now

func Encode(p Payload) (string, error) {
	p.EvaluatedAt = p.EvaluatedAt.UTC()
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return Sentinel + string(raw), nil
}

// IsEncoded reports whether notes carries the sentinel.
func IsEncoded(notes *string) bool {
	return notes != nil && strings.HasPrefix(*notes, Sentinel)
}

// Decode parses an encoded note. ok is false for anything that is not an alert.
func Decode(notes *string) (p Payload, ok bool) {
	if !IsEncoded(notes) {
		return Payload{}, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(*notes, Sentinel)), &data); err != nil || data == nil {
		return Payload{}, false
	}

	p.Summary = DefaultSummary
	if s, isStr := data["summary"].(string); isStr && strings.TrimSpace(s) != "" {
		p.Summary = strings.TrimSpace(s)
	}
	if s, isStr := data["severity"].(string); isStr && strings.TrimSpace(s) != "" {
		sev := strings.TrimSpace(s)
		p.Severity = &sev
	}
	if s, isStr := data["sourcePostId"].(string); isStr {
		p.SourcePostID = s
	}

	p.RadiusKm = radius(data["radiusKm"])
	p.NearbyCount = int(math.Max(0, math.Floor(number(data["nearbyCount"], 0))))

	p.EvaluatedAt = now().UTC()
	if s, isStr := data["evaluatedAt"].(string); isStr {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			p.EvaluatedAt = t.UTC()
		}
	}
	return p, true
}

// ReportToAlertView reads an alert out of a report whose notes carry an encoded payload.
func ReportToAlertView(r model.Report) (model.OutbreakAlert, bool) {
	if r.Location == nil {
		return model.OutbreakAlert{}, false
	}
	p, ok := Decode(r.Notes)
	if !ok {
		return model.OutbreakAlert{}, false
	}

	return model.OutbreakAlert{
		ID:             r.ID,
		SourceReportID: p.SourcePostID,
		CreatedBy:      r.CreatedBy,
		DiseaseLabel:   r.DiseaseLabel,
		Summary:        p.Summary,
		IsOutbreak:     true,
		Severity:       p.Severity,
		Location:       *r.Location,
		RadiusKm:       p.RadiusKm,
		NearbyCount:    p.NearbyCount,
		EvaluatedAt:    p.EvaluatedAt,
		CreatedAt:      r.CreatedAt,
	}, true
}

func PayloadFromAlert(a model.OutbreakAlert) Payload {
	return Payload{
		Summary:      a.Summary,
		Severity:     a.Severity,
		RadiusKm:     a.RadiusKm,
		NearbyCount:  a.NearbyCount,
		SourcePostID: a.SourceReportID,
		EvaluatedAt:  a.EvaluatedAt,
	}
}

// radius keeps any positive value up to the cap. Only a non-positive radius is raised to
// the minimum; a missing or non-numeric one takes the default.
func radius(v any) float64 {
	r := number(v, defaultRadiusKm)
	if r <= 0 {
		return minRadiusKm
	}
	return math.Min(model.MaxAlertRadiusKm, r)
}

func number(v any, fallback float64) float64 {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return fallback
		}
		n = parsed
	default:
		return fallback
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	return n
}
