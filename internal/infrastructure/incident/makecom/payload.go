package makecom

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

type webhookPayload struct {
	Jira     jiraFields  `json:"jira"`
	Analysis summary     `json:"analysis"`
	Env      environment `json:"environment"`
	Metadata metadata    `json:"webhook_metadata"`
}

type jiraFields struct {
	ProjectKey  string   `json:"project_key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	IssueType   string   `json:"issue_type"`
	Labels      []string `json:"labels"`
	Components  []string `json:"components"`
	Urgency     string   `json:"urgency"`
}

type summary struct {
	ID                string      `json:"id"`
	Timestamp         string      `json:"timestamp"`
	Coordinates       coordinates `json:"coordinates"`
	Risk              riskFields  `json:"risk"`
	ProcessingSeconds float64     `json:"processing_time_seconds"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    string  `json:"region"`
}

type riskFields struct {
	Level      float64 `json:"level"`
	Severity   string  `json:"severity"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

type environment struct {
	Weather        *domain.WeatherData        `json:"weather"`
	Satellite      *domain.VegetationData     `json:"satellite"`
	Infrastructure *domain.InfrastructureData `json:"power_infrastructure"`
}

type metadata struct {
	Source   string `json:"source"`
	Version  string `json:"version"`
	DemoMode bool   `json:"demo_mode"`
	SentAt   string `json:"sent_at"`
}

// buildPayload flattens the analysis into the shape the Make.com scenario
// maps onto Jira fields. Priority tracks the same thresholds as severity.
func buildPayload(analysis *domain.Analysis, now time.Time) webhookPayload {
	lat := analysis.Request.Latitude
	lon := analysis.Request.Longitude

	var level, confidence float64
	severity := "UNKNOWN"
	rationale := "Analysis pending"
	if analysis.Risk != nil {
		level = analysis.Risk.Level
		severity = string(analysis.Risk.Severity)
		rationale = analysis.Risk.Rationale
		confidence = analysis.Risk.Confidence
	}

	priority, urgency := jiraPriority(level)
	timestamp := now.Format(time.RFC3339)

	return webhookPayload{
		Jira: jiraFields{
			ProjectKey:  "PYRO",
			Summary:     fmt.Sprintf("%s Wildfire Risk - %.4f°N, %.4f°W (Hawaiian Islands)", severity, lat, math.Abs(lon)),
			Description: buildDescription(analysis, severity, level, rationale, now),
			Priority:    priority,
			IssueType:   "Incident",
			Labels:      []string{"wildfire", "risk-assessment", "automated", "risk-" + strings.ToLower(severity), "hawaii"},
			Components:  []string{"Wildfire Prevention"},
			Urgency:     urgency,
		},
		Analysis: summary{
			ID:        analysis.ID,
			Timestamp: timestamp,
			Coordinates: coordinates{
				Latitude:  lat,
				Longitude: lon,
				Region:    "Hawaiian Islands",
			},
			Risk: riskFields{
				Level:      level,
				Severity:   severity,
				Rationale:  rationale,
				Confidence: confidence,
			},
			ProcessingSeconds: analysis.ProcessingSeconds,
		},
		Env: environment{
			Weather:        analysis.Weather,
			Satellite:      analysis.Vegetation,
			Infrastructure: analysis.Infrastructure,
		},
		Metadata: metadata{
			Source:   "pyroguard_sentinel",
			Version:  "1.0.0",
			DemoMode: analysis.Request.DemoMode,
			SentAt:   timestamp,
		},
	}
}

func jiraPriority(level float64) (priority, urgency string) {
	switch {
	case level >= 0.8:
		return "Highest", "CRITICAL"
	case level >= 0.6:
		return "High", "HIGH"
	case level >= 0.3:
		return "Medium", "MEDIUM"
	default:
		return "Low", "LOW"
	}
}

func buildDescription(analysis *domain.Analysis, severity string, level float64, rationale string, now time.Time) string {
	lat := analysis.Request.Latitude
	lon := analysis.Request.Longitude

	lines := []string{
		"*AUTOMATED WILDFIRE RISK ASSESSMENT*",
		"",
		"*Location Details:*",
		fmt.Sprintf("• Coordinates: %.6f°N, %.6f°W", lat, math.Abs(lon)),
		"• Region: Hawaiian Islands",
		"• Analysis ID: " + analysis.ID,
		"• Timestamp: " + now.Format("2006-01-02 15:04:05 UTC"),
		"",
		"*Risk Assessment:*",
		fmt.Sprintf("• Severity Level: *%s*", severity),
		fmt.Sprintf("• Risk Score: %.2f (%.0f%%)", level, level*100),
	}

	if analysis.Weather != nil {
		w := analysis.Weather
		lines = append(lines,
			"",
			"*Environmental Conditions:*",
			fmt.Sprintf("• Temperature: %.0f°F", w.TemperatureF),
			fmt.Sprintf("• Humidity: %.0f%%", w.HumidityPercent),
			fmt.Sprintf("• Wind Speed: %.0f mph", w.WindSpeedMph),
			"• Conditions: "+w.Conditions,
		)
	}

	if analysis.Vegetation != nil {
		v := analysis.Vegetation
		lines = append(lines,
			"",
			"*Satellite Analysis:*",
			fmt.Sprintf("• Vegetation Dryness: %.1f%%", v.DrynessScore*100),
			fmt.Sprintf("• Confidence: %.0f%%", v.Confidence*100),
			"• Image Date: "+v.TileDate,
			"• Analysis Method: "+v.Method,
		)
	}

	if analysis.Infrastructure != nil {
		i := analysis.Infrastructure
		lines = append(lines,
			"",
			"*Power Infrastructure:*",
			fmt.Sprintf("• Power Lines (500m radius): %d", i.LineCount),
			fmt.Sprintf("• Nearest Distance: %.0fm", i.NearestDistanceM),
			"• Transmission Risk: "+transmissionRisk(i.NearestDistanceM),
		)
	}

	lines = append(lines,
		"",
		"*Risk Analysis:*",
		rationale,
		"",
		"*Next Steps:*",
		"• Review current conditions at coordinates",
		"• Consider deploying monitoring equipment if HIGH/EXTREME risk",
		fmt.Sprintf("• Coordinate with local fire departments for %s risk areas", strings.ToLower(severity)),
		"• Monitor weather conditions for changes",
		"",
		"_Generated by PyroGuard Sentinel - Hawaiian Islands Wildfire Risk Assessment System_",
	)
	return strings.Join(lines, "\n")
}

func transmissionRisk(nearestM float64) string {
	switch {
	case nearestM < 100:
		return "HIGH"
	case nearestM < 300:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
