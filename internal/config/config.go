// Package config loads service settings from the environment with an
// optional YAML overlay file (SENTINEL_CONFIG). File values win over
// environment values so one deployment artifact can pin a full profile.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	CORSAllowedOrigins  string  `yaml:"cors_allowed_origins"`
	SubmitRateLimitRPS  float64 `yaml:"submit_rate_limit_rps"`
	SubmitRateBurst     int     `yaml:"submit_rate_burst"`
	SubmitMaxInFlight   int     `yaml:"submit_max_in_flight"`
	ProbeTimeoutSeconds int     `yaml:"probe_timeout_seconds"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	NOAABaseURL        string `yaml:"noaa_base_url"`
	NOAAUserAgent      string `yaml:"noaa_user_agent"`
	NOAATimeoutSeconds int    `yaml:"noaa_timeout_seconds"`

	ClarifaiPAT     string `yaml:"clarifai_pat"`
	ClarifaiUserID  string `yaml:"clarifai_user_id"`
	ClarifaiAppID   string `yaml:"clarifai_app_id"`
	ClarifaiBaseURL string `yaml:"clarifai_base_url"`

	VisionAPIKey  string `yaml:"vision_api_key"`
	VisionModel   string `yaml:"vision_model"`
	VisionBaseURL string `yaml:"vision_base_url"`

	OverpassEndpoint string `yaml:"overpass_endpoint"`

	MakeWebhookURL string `yaml:"make_webhook_url"`
	JiraBaseURL    string `yaml:"jira_base_url"`

	SatelliteS3Endpoint string `yaml:"satellite_s3_endpoint"`
	SatelliteAccessKey  string `yaml:"satellite_access_key"`
	SatelliteSecretKey  string `yaml:"satellite_secret_key"`
	SatelliteRegion     string `yaml:"satellite_region"`

	CollaboratorTimeoutSeconds int `yaml:"collaborator_timeout_seconds"`
	InfrastructureRadiusM      int `yaml:"infrastructure_radius_m"`

	RetryMaxAttempts   int `yaml:"retry_max_attempts"`
	RetryBackoffMillis int `yaml:"retry_backoff_millis"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

// Load reads the environment, then overlays the YAML file named by
// SENTINEL_CONFIG when present. Malformed files fail loudly rather than
// silently running on defaults.
func Load() (Config, error) {
	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins:  mustEnv("CORS_ALLOWED_ORIGINS", "*"),
		SubmitRateLimitRPS:  mustEnvFloat("SUBMIT_RATE_LIMIT_RPS", 10),
		SubmitRateBurst:     mustEnvInt("SUBMIT_RATE_BURST", 20),
		SubmitMaxInFlight:   mustEnvInt("SUBMIT_MAX_IN_FLIGHT", 64),
		ProbeTimeoutSeconds: mustEnvInt("PROBE_TIMEOUT_SECONDS", 10),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "analyses.requested"),

		NOAABaseURL:        mustEnv("NOAA_BASE_URL", "https://api.weather.gov"),
		NOAAUserAgent:      mustEnv("NOAA_USER_AGENT", "PyroGuard Sentinel (wildfire-risk@pyroguard.io)"),
		NOAATimeoutSeconds: mustEnvInt("NOAA_TIMEOUT_SECONDS", 15),

		ClarifaiPAT:     mustEnv("CLARIFAI_PAT", ""),
		ClarifaiUserID:  mustEnv("CLARIFAI_USER_ID", "clarifai"),
		ClarifaiAppID:   mustEnv("CLARIFAI_APP_ID", "main"),
		ClarifaiBaseURL: mustEnv("CLARIFAI_BASE_URL", "https://api.clarifai.com"),

		VisionAPIKey:  mustEnv("VISION_API_KEY", ""),
		VisionModel:   mustEnv("VISION_MODEL", "gpt-4o"),
		VisionBaseURL: mustEnv("VISION_BASE_URL", ""),

		OverpassEndpoint: mustEnv("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter"),

		MakeWebhookURL: mustEnv("MAKE_WEBHOOK_URL", ""),
		JiraBaseURL:    mustEnv("JIRA_BASE_URL", "https://pyroguard.atlassian.net"),

		SatelliteS3Endpoint: mustEnv("SATELLITE_S3_ENDPOINT", "s3.us-west-2.amazonaws.com"),
		SatelliteAccessKey:  mustEnv("SATELLITE_ACCESS_KEY", ""),
		SatelliteSecretKey:  mustEnv("SATELLITE_SECRET_KEY", ""),
		SatelliteRegion:     mustEnv("SATELLITE_REGION", "us-west-2"),

		CollaboratorTimeoutSeconds: mustEnvInt("COLLABORATOR_TIMEOUT_SECONDS", 15),
		InfrastructureRadiusM:      mustEnvInt("INFRASTRUCTURE_RADIUS_M", 500),

		RetryMaxAttempts:   mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffMillis: mustEnvInt("RETRY_BACKOFF_MILLIS", 200),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}

	path := os.Getenv("SENTINEL_CONFIG")
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
