package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

// Risk weights and thresholds are fixed design constants, not configuration.
const (
	vegetationWeight  = 0.40
	temperatureWeight = 0.15
	humidityWeight    = 0.10
	windWeight        = 0.10
	infraWeight       = 0.25

	// IncidentThreshold is the minimum risk level at which an incident
	// ticket is filed.
	IncidentThreshold = 0.3

	confidenceCap = 0.95

	infraSearchRadiusM = 500.0
)

// Defaults substituted for any missing input group. Matches the substitution
// defaults used by the pipeline's own per-phase fallbacks, so a degraded
// upstream never hard-fails scoring.
const (
	defaultDryness       = 0.5
	defaultVegConfidence = 0.8
	defaultTemperatureF  = 75.0
	defaultHumidityPct   = 65.0
	defaultWindMph       = 10.0
	defaultNearestM      = 500.0
)

// ScoreRisk computes the composite wildfire risk for one location. Pure and
// deterministic: identical inputs yield byte-identical output, rationale
// text included. It never fails; nil input groups are defaulted.
func ScoreRisk(veg *domain.VegetationData, wx *domain.WeatherData, infra *domain.InfrastructureData, lat, lon float64) domain.RiskAssessment {
	if veg == nil {
		veg = &domain.VegetationData{DrynessScore: defaultDryness, Confidence: defaultVegConfidence, Method: "unknown"}
	}
	if wx == nil {
		wx = &domain.WeatherData{TemperatureF: defaultTemperatureF, HumidityPercent: defaultHumidityPct, WindSpeedMph: defaultWindMph, Conditions: "unknown"}
	}
	if infra == nil {
		infra = &domain.InfrastructureData{LineCount: 0, NearestDistanceM: defaultNearestM}
	}

	dryness := clamp01(veg.DrynessScore)
	vegTerm := dryness * vegetationWeight

	tempFactor := math.Max(0, (wx.TemperatureF-70)/40)
	humidityFactor := math.Max(0, (80-wx.HumidityPercent)/80)
	windFactor := math.Min(1, wx.WindSpeedMph/30)
	weatherTerm := tempFactor*temperatureWeight + humidityFactor*humidityWeight + windFactor*windWeight

	infraTerm := 0.0
	if infra.LineCount > 0 {
		proximity := math.Max(0, (infraSearchRadiusM-infra.NearestDistanceM)/infraSearchRadiusM)
		density := math.Min(1, float64(infra.LineCount)/10)
		infraTerm = (proximity + density) / 2 * infraWeight
	}

	level := clamp01(vegTerm + weatherTerm + infraTerm)
	severity := severityFor(level)

	return domain.RiskAssessment{
		Level:      level,
		Severity:   severity,
		Rationale:  buildRationale(veg, wx, infra, lat, lon, dryness, vegTerm, weatherTerm, infraTerm, level, severity),
		Confidence: math.Min(clamp01(veg.Confidence), confidenceCap),
		Breakdown: domain.RiskBreakdown{
			Vegetation:     vegTerm,
			Weather:        weatherTerm,
			Infrastructure: infraTerm,
		},
	}
}

// Severity buckets are inclusive on the lower bound: exactly 0.3 is MEDIUM,
// exactly 0.8 is EXTREME.
func severityFor(level float64) domain.RiskSeverity {
	switch {
	case level >= 0.8:
		return domain.SeverityExtreme
	case level >= 0.6:
		return domain.SeverityHigh
	case level >= IncidentThreshold:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// riskFactors lists the threshold-gated contributing factors in a fixed
// order. The clause wording is a documented contract; user-facing text
// depends on it.
func riskFactors(dryness float64, wx *domain.WeatherData, infra *domain.InfrastructureData) []string {
	var factors []string

	switch {
	case dryness > 0.8:
		factors = append(factors, "critically dry vegetation")
	case dryness > 0.6:
		factors = append(factors, "moderately dry vegetation")
	case dryness > 0.4:
		factors = append(factors, "slightly dry vegetation")
	}

	if wx.TemperatureF > 85 {
		factors = append(factors, "high temperature")
	}
	if wx.HumidityPercent < 40 {
		factors = append(factors, "low humidity")
	}
	if wx.WindSpeedMph > 20 {
		factors = append(factors, "strong winds")
	}
	conditions := strings.ToLower(wx.Conditions)
	if strings.Contains(conditions, "dry") || strings.Contains(conditions, "clear") {
		factors = append(factors, "dry weather conditions")
	}

	if infra.LineCount > 0 {
		if infra.NearestDistanceM < 100 {
			factors = append(factors, "very close power lines")
		} else if infra.NearestDistanceM < 300 {
			factors = append(factors, "nearby power infrastructure")
		}
		if infra.LineCount > 5 {
			factors = append(factors, "dense power line network")
		}
	}

	return factors
}

func buildRationale(
	veg *domain.VegetationData,
	wx *domain.WeatherData,
	infra *domain.InfrastructureData,
	lat, lon float64,
	dryness, vegTerm, weatherTerm, infraTerm, level float64,
	severity domain.RiskSeverity,
) string {
	var b strings.Builder
	severityWord := strings.ToLower(string(severity))

	factors := riskFactors(dryness, wx, infra)
	if len(factors) > 0 {
		fmt.Fprintf(&b, "Wildfire risk assessment indicates %s danger due to %s. ", severityWord, strings.Join(factors, ", "))
	} else {
		fmt.Fprintf(&b, "Wildfire risk assessment shows %s danger with standard environmental conditions. ", severityWord)
	}

	if vegTerm > 0.3 {
		fmt.Fprintf(&b, "Satellite imagery shows %.0f%% vegetation dryness (analyzed via %s). ", dryness*100, veg.Method)
	}
	if weatherTerm > 0.2 {
		fmt.Fprintf(&b, "Weather conditions contribute to fire risk with %.0f°F temperature, %.0f%% humidity, and %.0f mph winds. ",
			wx.TemperatureF, wx.HumidityPercent, wx.WindSpeedMph)
	}
	if infraTerm > 0.1 {
		fmt.Fprintf(&b, "Power infrastructure poses ignition risk with %d lines within 500m, nearest at %.0fm. ",
			infra.LineCount, infra.NearestDistanceM)
	}

	fmt.Fprintf(&b, "Analysis performed for Hawaiian Islands location %.4f°N, %.4f°W. ", lat, math.Abs(lon))

	switch {
	case level >= 0.6:
		b.WriteString("Recommend increased monitoring and fire prevention measures.")
	case level >= IncidentThreshold:
		b.WriteString("Standard fire safety protocols advised.")
	default:
		b.WriteString("Current conditions pose minimal fire risk.")
	}

	return b.String()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
