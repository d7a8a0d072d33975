// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/attendguard/internal/risk"
)

// Blend selects how the rule score and the model-side score are combined.
type Blend string

const (
	// BlendAverage averages both scores when a rule fired, else uses the model side.
	BlendAverage Blend = "average"
	// BlendMax takes the larger of the two.
	BlendMax Blend = "max"
	// BlendRules uses the rule score only.
	BlendRules Blend = "rules"
	// BlendModel uses the model-side score only.
	BlendModel Blend = "model"
)

// ParseBlend converts a configuration string into a Blend.
func ParseBlend(s string) (Blend, error) {
	switch b := Blend(strings.ToLower(strings.TrimSpace(s))); b {
	case BlendAverage, BlendMax, BlendRules, BlendModel:
		return b, nil
	case "":
		return BlendAverage, nil
	default:
		return "", fmt.Errorf("unknown blend %q", s)
	}
}

// AggregatorConfig holds the composite scoring policy.
type AggregatorConfig struct {
	Blend Blend `json:"blend"`

	// GPSSpoofingThreshold is compared against the model-side score.
	GPSSpoofingThreshold float64 `json:"gps_spoofing_threshold"`

	// MLHighRiskThreshold is compared against the composite score.
	MLHighRiskThreshold float64 `json:"ml_high_risk_threshold"`

	// Precedence orders violation types, highest severity first.
	Precedence []ViolationType `json:"precedence"`

	// Weights are the severity of each rule signal on a 0-100 scale.
	Weights map[ViolationType]float64 `json:"weights"`

	// ExtraSignalBonus is added to the rule score per additional fired rule.
	ExtraSignalBonus float64 `json:"extra_signal_bonus"`
}

// DefaultAggregatorConfig returns the default policy.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Blend:                BlendAverage,
		GPSSpoofingThreshold: 80,
		MLHighRiskThreshold:  60,
		Precedence:           append([]ViolationType(nil), DefaultPrecedence...),
		Weights: map[ViolationType]float64{
			ViolationMultiplePRNs:     90,
			ViolationImpossibleTravel: 85,
			ViolationDuplicateDevice:  75,
			ViolationDuplicatePRN:     70,
			ViolationOutsideGeofence:  60,
			ViolationLowGPSAccuracy:   30,
		},
		ExtraSignalBonus: 5,
	}
}

// Evaluation gathers every signal produced for one check-in.
type Evaluation struct {
	Event    *CheckInEvent
	Geofence GeofenceResult
	Device   DeviceSignals
	Travel   TravelSignal
	Risk     risk.Result
}

// Score is the breakdown of a composite risk score.
type Score struct {
	Composite float64 `json:"composite"`
	Rule      float64 `json:"rule"`
	RuleFired bool    `json:"rule_fired"`
	ModelSide float64 `json:"model_side"`
}

// Aggregator merges signals into a single decision.
type Aggregator struct {
	config AggregatorConfig
	now    func() time.Time
}

// NewAggregator creates an aggregator. Unknown or repeated precedence
// entries are dropped and missing types are appended in default order.
func NewAggregator(config AggregatorConfig) *Aggregator {
	defaults := DefaultAggregatorConfig()
	if config.Blend == "" {
		config.Blend = defaults.Blend
	}
	if config.Weights == nil {
		config.Weights = defaults.Weights
	}
	config.Precedence = normalizePrecedence(config.Precedence)
	return &Aggregator{config: config, now: time.Now}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() AggregatorConfig {
	return a.config
}

func normalizePrecedence(in []ViolationType) []ViolationType {
	seen := make(map[ViolationType]bool, len(DefaultPrecedence))
	out := make([]ViolationType, 0, len(DefaultPrecedence))
	for _, t := range in {
		if t.Valid() && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range DefaultPrecedence {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// ruleSignals lists the fired rule-based signals of an evaluation.
func ruleSignals(ev *Evaluation) []ViolationType {
	var fired []ViolationType
	if ev.Device.MultiplePRNs {
		fired = append(fired, ViolationMultiplePRNs)
	}
	if ev.Travel.Fired {
		fired = append(fired, ViolationImpossibleTravel)
	}
	if ev.Device.DuplicateDevice {
		fired = append(fired, ViolationDuplicateDevice)
	}
	if ev.Device.DuplicatePRN {
		fired = append(fired, ViolationDuplicatePRN)
	}
	if !ev.Geofence.Inside {
		fired = append(fired, ViolationOutsideGeofence)
	}
	if ev.Geofence.LowAccuracy {
		fired = append(fired, ViolationLowGPSAccuracy)
	}
	return fired
}

// Score computes the composite score for an evaluation.
func (a *Aggregator) Score(ev *Evaluation) Score {
	return a.score(ev, ruleSignals(ev))
}

func (a *Aggregator) score(ev *Evaluation, rules []ViolationType) Score {
	s := Score{ModelSide: ev.Risk.Score}

	if len(rules) > 0 {
		s.RuleFired = true
		highest := 0.0
		for _, t := range rules {
			highest = math.Max(highest, a.config.Weights[t])
		}
		s.Rule = math.Min(100, highest+a.config.ExtraSignalBonus*float64(len(rules)-1))
	}

	switch a.config.Blend {
	case BlendMax:
		s.Composite = math.Max(s.Rule, s.ModelSide)
	case BlendRules:
		s.Composite = s.Rule
	case BlendModel:
		s.Composite = s.ModelSide
	default:
		if s.RuleFired {
			s.Composite = (s.Rule + s.ModelSide) / 2
		} else {
			s.Composite = s.ModelSide
		}
	}
	s.Composite = math.Round(math.Max(0, math.Min(100, s.Composite))*100) / 100
	return s
}

// Aggregate returns the composite score, every fired cause in precedence
// order and, when anything fired, the violation to record.
func (a *Aggregator) Aggregate(ev *Evaluation) (*Violation, Score, []ViolationType) {
	rules := ruleSignals(ev)
	score := a.score(ev, rules)

	fired := make(map[ViolationType]bool, len(rules)+2)
	for _, t := range rules {
		fired[t] = true
	}
	if score.ModelSide >= a.config.GPSSpoofingThreshold {
		fired[ViolationGPSSpoofing] = true
	}
	if score.Composite >= a.config.MLHighRiskThreshold {
		fired[ViolationMLHighRisk] = true
	}
	if len(fired) == 0 {
		return nil, score, nil
	}

	signals := make([]ViolationType, 0, len(fired))
	for _, t := range a.config.Precedence {
		if fired[t] {
			signals = append(signals, t)
		}
	}

	return a.buildViolation(ev, score, signals), score, signals
}

func (a *Aggregator) buildViolation(ev *Evaluation, score Score, signals []ViolationType) *Violation {
	event := ev.Event
	now := a.now().UTC()
	distance := roundTo2Decimals(ev.Geofence.DistanceMeters)

	v := &Violation{
		ID:                   uuid.NewString(),
		SessionID:            event.SessionID,
		StudentID:            event.StudentID,
		StudentIdentifier:    event.StudentIdentifier,
		IPAddress:            event.IPAddress,
		UserAgent:            event.UserAgent,
		DeviceFingerprint:    event.DeviceFingerprint,
		GPSLat:               event.GPSLat,
		GPSLng:               event.GPSLng,
		GPSAccuracyMeters:    event.GPSAccuracyMeters,
		Timestamp:            event.Timestamp,
		ViolationType:        signals[0],
		Signals:              signals,
		RiskScore:            score.Composite,
		ScoreSource:          string(ev.Risk.Source),
		DistanceFromGeofence: &distance,
		Status:               StatusFlagged,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if event.AttendanceRecordID != "" {
		id := event.AttendanceRecordID
		v.AttendanceRecordID = &id
	}
	if ev.Risk.Probability != nil {
		p := *ev.Risk.Probability
		v.MLProbability = &p
	}
	v.Details = a.describe(ev, score, signals)
	return v
}

// describe renders the primary cause first, then the other fired signals.
func (a *Aggregator) describe(ev *Evaluation, score Score, signals []ViolationType) string {
	parts := make([]string, 0, len(signals))
	for _, t := range signals {
		parts = append(parts, a.describeSignal(ev, score, t))
	}

	var b strings.Builder
	b.WriteString(parts[0])
	if len(parts) > 1 {
		b.WriteString(". Also detected: ")
		b.WriteString(strings.Join(parts[1:], "; "))
	}
	fmt.Fprintf(&b, ". Risk score %.2f (%s)", score.Composite, ev.Risk.Source)
	if ev.Risk.FallbackReason != "" {
		fmt.Fprintf(&b, ", model fallback: %s", ev.Risk.FallbackReason)
	}
	return b.String()
}

func (a *Aggregator) describeSignal(ev *Evaluation, score Score, t ViolationType) string {
	switch t {
	case ViolationMultiplePRNs:
		return fmt.Sprintf("multiple_prns_same_device: device used by %d distinct identifiers in this session (limit %d)",
			ev.Device.DistinctIdentifiers, ev.Device.Threshold)
	case ViolationImpossibleTravel:
		return fmt.Sprintf("impossible_travel: moved %.0f m in %s since the previous check-in (%.2f km/h, bearing %.0f deg)",
			ev.Travel.DistanceMeters, formatElapsed(ev.Travel.ElapsedSeconds), ev.Travel.SpeedKmh, ev.Travel.BearingDegrees)
	case ViolationDuplicateDevice:
		return fmt.Sprintf("duplicate_device: device already used by %s in this session",
			strings.Join(sortedCopy(ev.Device.OtherIdentifiers), ", "))
	case ViolationDuplicatePRN:
		return fmt.Sprintf("duplicate_prn: %s already checked in from %d other device(s) in this session",
			ev.Event.StudentIdentifier, ev.Device.OtherDevices)
	case ViolationGPSSpoofing:
		return fmt.Sprintf("gps_spoofing_suspected: model-side score %.2f at or above %.2f",
			score.ModelSide, a.config.GPSSpoofingThreshold)
	case ViolationOutsideGeofence:
		return fmt.Sprintf("outside_geofence: %.0f m from the session center", ev.Geofence.DistanceMeters)
	case ViolationLowGPSAccuracy:
		return fmt.Sprintf("low_gps_accuracy: accuracy %.0f m is wider than the geofence", ev.Event.GPSAccuracyMeters)
	case ViolationMLHighRisk:
		return fmt.Sprintf("ml_high_risk: composite score %.2f at or above %.2f",
			score.Composite, a.config.MLHighRiskThreshold)
	default:
		return string(t)
	}
}

func formatElapsed(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
