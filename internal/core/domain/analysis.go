package domain

import "time"

type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisRequest is the immutable submission payload. Coordinates must fall
// inside the supported Hawaiian Islands region; DemoMode trades live upstream
// calls for cached/deterministic data and shorter phase delays.
type AnalysisRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DemoMode  bool    `json:"demo_mode"`
}

// VegetationData is the dryness assessment for one satellite tile.
// DrynessScore and Confidence are clamped to [0,1] by producers; a negative
// DrynessScore is the sentinel an analyzer tier uses to signal an unusable
// result without returning an error.
type VegetationData struct {
	DrynessScore float64 `json:"dryness_score"`
	Confidence   float64 `json:"confidence"`
	TileDate     string  `json:"tile_date"`
	Method       string  `json:"method"`
}

type WeatherData struct {
	WindSpeedMph    float64 `json:"wind_speed_mph"`
	HumidityPercent float64 `json:"humidity_percent"`
	TemperatureF    float64 `json:"temperature_f"`
	Conditions      string  `json:"conditions"`
}

type InfrastructureData struct {
	LineCount        int     `json:"line_count"`
	NearestDistanceM float64 `json:"nearest_distance_m"`
	TowerCount       int     `json:"tower_count"`
}

type RiskSeverity string

const (
	SeverityLow     RiskSeverity = "LOW"
	SeverityMedium  RiskSeverity = "MEDIUM"
	SeverityHigh    RiskSeverity = "HIGH"
	SeverityExtreme RiskSeverity = "EXTREME"
)

// RiskBreakdown reports each weighted term of the composite score.
type RiskBreakdown struct {
	Vegetation     float64 `json:"vegetation"`
	Weather        float64 `json:"weather"`
	Infrastructure float64 `json:"infrastructure"`
}

type RiskAssessment struct {
	Level      float64       `json:"risk_level"`
	Severity   RiskSeverity  `json:"severity"`
	Rationale  string        `json:"rationale"`
	Confidence float64       `json:"confidence"`
	Breakdown  RiskBreakdown `json:"component_breakdown"`
}

// Analysis is the mutable aggregate for one submitted request. Field groups
// are populated one at a time by the pipeline and never cleared; Status only
// moves forward (processing -> completed|failed).
type Analysis struct {
	ID                string              `json:"analysis_id"`
	Request           AnalysisRequest     `json:"request"`
	Status            AnalysisStatus      `json:"status"`
	Vegetation        *VegetationData     `json:"vegetation,omitempty"`
	Weather           *WeatherData        `json:"weather,omitempty"`
	Infrastructure    *InfrastructureData `json:"infrastructure,omitempty"`
	Risk              *RiskAssessment     `json:"risk,omitempty"`
	IncidentRef       string              `json:"incident_ref,omitempty"`
	ProcessingSeconds float64             `json:"processing_seconds"`
	ErrorMessage      string              `json:"error_message,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// Clone returns a deep copy so readers never share pointers with the store.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	if a.Vegetation != nil {
		v := *a.Vegetation
		out.Vegetation = &v
	}
	if a.Weather != nil {
		w := *a.Weather
		out.Weather = &w
	}
	if a.Infrastructure != nil {
		i := *a.Infrastructure
		out.Infrastructure = &i
	}
	if a.Risk != nil {
		r := *a.Risk
		out.Risk = &r
	}
	return &out
}

// AnalysisPatch is a partial update applied atomically to one analysis.
// Nil fields are left untouched.
type AnalysisPatch struct {
	Status            *AnalysisStatus
	Vegetation        *VegetationData
	Weather           *WeatherData
	Infrastructure    *InfrastructureData
	Risk              *RiskAssessment
	IncidentRef       *string
	ProcessingSeconds *float64
	ErrorMessage      *string
}

// AnalysisJob is the queue payload that hands a submitted analysis to a
// worker for pipeline execution.
type AnalysisJob struct {
	AnalysisID  string    `json:"analysis_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DemoMode    bool      `json:"demo_mode"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}
