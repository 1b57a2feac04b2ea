package domain

import "time"

type ProgressEventType string

const (
	EventConnected ProgressEventType = "connected"
	EventProgress  ProgressEventType = "progress"
	EventComplete  ProgressEventType = "complete"
	EventTimeout   ProgressEventType = "timeout"
	EventError     ProgressEventType = "error"
)

// ProgressEvent is one unit of a streaming subscription. The field set
// depends on Type: progress events carry whichever field groups the analysis
// has accumulated so far, complete events carry the terminal status, timeout
// and error events carry only a message.
type ProgressEvent struct {
	Type       ProgressEventType `json:"type"`
	AnalysisID string            `json:"analysis_id,omitempty"`
	Status     AnalysisStatus    `json:"status,omitempty"`

	Vegetation     *VegetationData     `json:"vegetation,omitempty"`
	Weather        *WeatherData        `json:"weather,omitempty"`
	Infrastructure *InfrastructureData `json:"infrastructure,omitempty"`
	Risk           *RiskAssessment     `json:"risk,omitempty"`
	IncidentRef    string              `json:"incident_ref,omitempty"`

	ProcessingSeconds float64   `json:"processing_seconds,omitempty"`
	Message           string    `json:"message,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
