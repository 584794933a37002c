package oracle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"crop-outbreaks/internal/model"
)

const (
	DefaultSummary  = "Potential disease outbreak risk detected in your nearby area."
	DefaultRadiusKm = 25.0
)

// Decision is the oracle verdict after tolerant parsing.
type Decision struct {
	Outbreak     bool
	Summary      string
	DiseaseLabel string
	RadiusKm     float64
	Severity     *string
}

// candidate pairs a response key with the coercion applied to its value.
type candidate[T any] struct {
	key    string
	coerce func(any) (T, bool)
}

// Candidates per field, tried in order; the first key that coerces wins.
var (
	outbreakKeys = []candidate[bool]{
		{"outbreak", asBool},
		{"is_outbreak", asBool},
		{"outbreakDetected", asBool},
		{"significant_issue", asBool},
	}
	summaryKeys = []candidate[string]{
		{"summary", asText},
		{"description", asText},
		{"message", asText},
	}
	diseaseKeys = []candidate[string]{
		{"disease", asText},
		{"disease_label", asText},
		{"diseaseLabel", asText},
		{"predicted_label", asText},
	}
	radiusKeys = []candidate[float64]{
		{"radiusKm", asPositiveNumber},
		{"radius_km", asPositiveNumber},
		{"radius", asPositiveNumber},
	}
	severityKeys = []candidate[string]{
		{"severity", asText},
		{"severity_level", asText},
	}
)

func firstMatch[T any](obj map[string]any, candidates []candidate[T]) (T, bool) {
	for _, c := range candidates {
		v, present := obj[c.key]
		if !present || v == nil {
			continue
		}
		if out, ok := c.coerce(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

// ParseDecision never fails: empty or malformed bodies behave like an empty object.
func ParseDecision(body []byte, fallbackLabel string) Decision {
	obj := decisionObject(body)

	d := Decision{
		Summary:      DefaultSummary,
		DiseaseLabel: fallbackLabel,
		RadiusKm:     DefaultRadiusKm,
	}
	d.Outbreak, _ = firstMatch(obj, outbreakKeys)
	if s, ok := firstMatch(obj, summaryKeys); ok {
		d.Summary = s
	}
	if s, ok := firstMatch(obj, diseaseKeys); ok {
		d.DiseaseLabel = s
	}
	if r, ok := firstMatch(obj, radiusKeys); ok {
		d.RadiusKm = math.Min(r, model.MaxAlertRadiusKm)
	}
	if s, ok := firstMatch(obj, severityKeys); ok {
		d.Severity = &s
	}
	return d
}

// decisionObject unwraps a top-level array and a nested "result" object.
func decisionObject(body []byte) map[string]any {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return map[string]any{}
	}

	if list, ok := raw.([]any); ok {
		raw = nil
		if len(list) > 0 {
			raw = list[0]
		}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if nested, ok := obj["result"].(map[string]any); ok {
		return nested
	}
	return obj
}

func asBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true, true
		}
		return false, true
	case float64:
		return val > 0, true
	}
	return false, false
}

func asText(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func asPositiveNumber(v any) (float64, bool) {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0, false
	}
	return n, true
}
