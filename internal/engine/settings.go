package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"thermostat_control/internal/logger"

	"github.com/spf13/cast"
)

// Settings patch keys.
const (
	KeyHysteresisHigh           = "hysteresisHigh"
	KeyHysteresisLow            = "hysteresisLow"
	KeyMaxHeatingSeconds        = "maxHeatingSeconds"
	KeyTemperatureSources       = "temperatureSources"
	KeyScheduledShutdownEnabled = "scheduledShutdownEnabled"
	KeyScheduledShutdownTime    = "scheduledShutdownTime"
	KeyTimeZone                 = "timeZone"
)

const secondsPerDay = 24 * 60 * 60

// OutcomeStatus tells what happened to one field of a patch.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeIgnored  OutcomeStatus = "ignored"
)

// FieldOutcome is the validation result for one key of a patch.
// Source weights are reported as "temperatureSources.<id>".
type FieldOutcome struct {
	Key    string        `json:"key"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// PatchReport collects the per-field outcomes of one Apply call.
type PatchReport struct {
	Fields []FieldOutcome `json:"fields"`
	// Sources lists the source weights accepted by this patch.
	Sources []WeightedSource `json:"sources,omitempty"`
}

// Accepted returns the keys that were applied.
func (r PatchReport) Accepted() []string {
	var out []string
	for _, f := range r.Fields {
		if f.Status == OutcomeAccepted {
			out = append(out, f.Key)
		}
	}
	return out
}

// Rejected returns the outcomes of fields that failed validation.
func (r PatchReport) Rejected() []FieldOutcome {
	var out []FieldOutcome
	for _, f := range r.Fields {
		if f.Status == OutcomeRejected {
			out = append(out, f)
		}
	}
	return out
}

// Outcome looks up the result for key.
func (r PatchReport) Outcome(key string) (FieldOutcome, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldOutcome{}, false
}

func (r *PatchReport) add(key string, err error) {
	if err != nil {
		r.Fields = append(r.Fields, FieldOutcome{Key: key, Status: OutcomeRejected, Reason: err.Error()})
		return
	}
	r.Fields = append(r.Fields, FieldOutcome{Key: key, Status: OutcomeAccepted})
}

// SourceRegistry receives source weights accepted from a patch.
type SourceRegistry interface {
	SetWeight(source string, weight float64)
}

// SettingsStore holds ControlSettings and applies partial updates field by field:
// one bad field never blocks or rolls back the valid ones.
// Not safe for concurrent use; Thermostat serializes access.
type SettingsStore struct {
	current   ControlSettings
	sources   SourceRegistry
	lastPatch map[string]any
	log       *logger.Logger
}

// NewSettingsStore starts from initial. sources may be nil, in which case
// temperatureSources entries are validated but not registered anywhere.
func NewSettingsStore(initial ControlSettings, sources SourceRegistry, log *logger.Logger) *SettingsStore {
	if initial.Location == nil {
		initial.Location = time.UTC
	}
	return &SettingsStore{current: initial, sources: sources, log: logger.OrNop(log)}
}

// Current returns a copy of the live settings.
func (s *SettingsStore) Current() ControlSettings {
	return s.current
}

// LastPatch returns a copy of the last raw patch, kept for diagnostics only.
func (s *SettingsStore) LastPatch() map[string]any {
	if s.lastPatch == nil {
		return nil
	}
	return deepCopyMap(s.lastPatch)
}

// Apply validates every recognized key of patch independently and applies the valid ones.
func (s *SettingsStore) Apply(patch map[string]any) PatchReport {
	var report PatchReport
	next := s.current

	// Hysteresis bounds are validated alone first, then against each other.
	var highErr, lowErr error
	rawHigh, hasHigh := patch[KeyHysteresisHigh]
	if hasHigh {
		highErr = applyHysteresis(rawHigh, &next.HysteresisHigh)
	}
	rawLow, hasLow := patch[KeyHysteresisLow]
	if hasLow {
		lowErr = applyHysteresis(rawLow, &next.HysteresisLow)
	}
	if next.HysteresisLow > next.HysteresisHigh {
		conflict := fmt.Errorf("hysteresisLow %v must not exceed hysteresisHigh %v", next.HysteresisLow, next.HysteresisHigh)
		if hasHigh && highErr == nil {
			next.HysteresisHigh = s.current.HysteresisHigh
			highErr = conflict
		}
		if hasLow && lowErr == nil {
			next.HysteresisLow = s.current.HysteresisLow
			lowErr = conflict
		}
	}
	if hasHigh {
		report.add(KeyHysteresisHigh, highErr)
	}
	if hasLow {
		report.add(KeyHysteresisLow, lowErr)
	}

	if raw, ok := patch[KeyMaxHeatingSeconds]; ok {
		secs, err := toWholeNumber(raw)
		if err == nil && secs <= 0 {
			err = fmt.Errorf("must be > 0, got %d", secs)
		}
		if err == nil {
			next.MaxHeating = time.Duration(secs) * time.Second
		}
		report.add(KeyMaxHeatingSeconds, err)
	}

	if raw, ok := patch[KeyTemperatureSources]; ok {
		s.applySources(raw, &report)
	}

	if raw, ok := patch[KeyScheduledShutdownEnabled]; ok {
		on, err := toBool(raw)
		if err == nil {
			next.ScheduledShutdown.Enabled = on
		}
		report.add(KeyScheduledShutdownEnabled, err)
	}

	if raw, ok := patch[KeyScheduledShutdownTime]; ok {
		secs, err := toWholeNumber(raw)
		if err == nil && (secs < 0 || secs >= secondsPerDay) {
			err = fmt.Errorf("must be within [0, %d), got %d", secondsPerDay, secs)
		}
		if err == nil {
			next.ScheduledShutdown.AtSecondsOfDay = int(secs)
		}
		report.add(KeyScheduledShutdownTime, err)
	}

	if raw, ok := patch[KeyTimeZone]; ok {
		loc, err := toLocation(raw)
		if err == nil {
			next.Location = loc
		}
		report.add(KeyTimeZone, err)
	}

	for _, key := range unknownKeys(patch) {
		report.Fields = append(report.Fields, FieldOutcome{Key: key, Status: OutcomeIgnored, Reason: "unrecognized key"})
	}

	for _, f := range report.Fields {
		switch f.Status {
		case OutcomeRejected:
			s.log.Warnw("settings_field_rejected", "key", f.Key, "reason", f.Reason)
		case OutcomeIgnored:
			s.log.Debugw("settings_field_ignored", "key", f.Key)
		}
	}

	s.current = next
	s.lastPatch = deepCopyMap(patch)
	return report
}

func (s *SettingsStore) applySources(raw any, report *PatchReport) {
	entries, err := cast.ToStringMapE(raw)
	if err != nil || raw == nil {
		report.add(KeyTemperatureSources, errors.New("must be an object of source to weight"))
		return
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		key := KeyTemperatureSources + "." + id
		if strings.TrimSpace(id) == "" {
			report.add(key, errors.New("source id is empty"))
			continue
		}
		weight := 0.0 // null or absent weight disables the source
		if v := entries[id]; v != nil {
			w, err := toFiniteFloat(v)
			if err == nil && w < 0 {
				err = fmt.Errorf("weight must be >= 0, got %v", w)
			}
			if err != nil {
				report.add(key, err)
				continue
			}
			weight = w
		}
		if s.sources != nil {
			s.sources.SetWeight(id, weight)
		}
		report.Sources = append(report.Sources, WeightedSource{ID: id, Weight: weight})
		report.add(key, nil)
	}
}

func applyHysteresis(raw any, dst *float64) error {
	v, err := toFiniteFloat(raw)
	if err != nil {
		return err
	}
	if v > 0 {
		return fmt.Errorf("must be <= 0, got %v", v)
	}
	*dst = v
	return nil
}

var knownKeys = map[string]struct{}{
	KeyHysteresisHigh:           {},
	KeyHysteresisLow:            {},
	KeyMaxHeatingSeconds:        {},
	KeyTemperatureSources:       {},
	KeyScheduledShutdownEnabled: {},
	KeyScheduledShutdownTime:    {},
	KeyTimeZone:                 {},
}

func unknownKeys(patch map[string]any) []string {
	var out []string
	for k := range patch {
		if _, ok := knownKeys[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// toFiniteFloat accepts JSON numbers, Go numeric types and numeric strings.
func toFiniteFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errors.New("value is null")
	case bool:
		return 0, fmt.Errorf("expected a number, got bool %v", v)
	case string:
		raw = strings.TrimSpace(v)
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("expected a number: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a finite number, got %v", f)
	}
	return f, nil
}

func toWholeNumber(raw any) (int64, error) {
	f, err := toFiniteFloat(raw)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected a whole number, got %v", f)
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("value %v out of range", f)
	}
	return int64(f), nil
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, errors.New("value is null")
	case string:
		raw = strings.TrimSpace(v)
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("expected a boolean: %w", err)
	}
	return b, nil
}

func toLocation(raw any) (*time.Location, error) {
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, errors.New("expected a non-empty IANA time zone name")
	}
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = deepCopyValue(t[i])
		}
		return out
	default:
		return v
	}
}
