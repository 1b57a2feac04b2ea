// Package clarifai scores vegetation dryness from satellite imagery via the
// Clarifai Crop Health NDVI model. This is the primary tier of the
// vegetation fallback chain.
package clarifai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/infrastructure/resilience"
	"github.com/pyroguard/sentinel/internal/infrastructure/transport"
)

// NDVIModelID is Clarifai's public Crop Health NDVI model.
const NDVIModelID = "aaa03c23b3724a16a56b629203edc62c"

type Client struct {
	baseURL    string
	pat        string
	userID     string
	appID      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(pat, userID, appID string, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api.clarifai.com"
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pat:        pat,
		userID:     userID,
		appID:      appID,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}
}

func (c *Client) Name() string { return "clarifai_ndvi" }

type predictRequest struct {
	Inputs []predictInput `json:"inputs"`
}

type predictInput struct {
	Data struct {
		Image struct {
			Base64 string `json:"base64"`
		} `json:"image"`
	} `json:"data"`
}

type predictResponse struct {
	Outputs []struct {
		Data struct {
			Regions []struct {
				Data struct {
					Concepts []concept `json:"concepts"`
				} `json:"data"`
			} `json:"regions"`
		} `json:"data"`
	} `json:"outputs"`
}

type concept struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// AnalyzeDryness submits the tile to the NDVI model and converts the
// returned vegetation index into a dryness score. Missing credentials or an
// empty tile fail the tier immediately so the resolver moves on.
func (c *Client) AnalyzeDryness(ctx context.Context, image []byte, lat, lon float64) (domain.VegetationData, error) {
	if c.pat == "" {
		return domain.VegetationData{}, fmt.Errorf("clarifai pat not configured")
	}
	if len(image) == 0 {
		return domain.VegetationData{}, fmt.Errorf("no satellite imagery to analyze")
	}

	var request predictRequest
	request.Inputs = make([]predictInput, 1)
	request.Inputs[0].Data.Image.Base64 = base64.StdEncoding.EncodeToString(image)

	url := fmt.Sprintf("%s/v2/users/%s/apps/%s/models/%s/outputs", c.baseURL, c.userID, c.appID, NDVIModelID)
	headers := map[string]string{
		"Authorization": "Key " + c.pat,
	}

	var response predictResponse
	call := func(callCtx context.Context) error {
		return transport.PostJSON(callCtx, c.httpClient, url, headers, request, &response, "clarifai.predict")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "clarifai.predict", call, transport.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.VegetationData{}, transport.WrapTemporary("clarifai predict", err)
	}

	ndvi, confidence, err := extractNDVI(response)
	if err != nil {
		return domain.VegetationData{}, err
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 1 {
		confidence = 1
	}

	dryness := drynessFromNDVI(ndvi)
	c.logger.Info("clarifai ndvi analysis complete",
		"ndvi", ndvi,
		"dryness", dryness,
		"confidence", confidence,
		"latitude", lat,
		"longitude", lon,
	)
	return domain.VegetationData{
		DrynessScore: dryness,
		Confidence:   confidence,
		Method:       c.Name(),
	}, nil
}

// Probe implements the health check used by the system-status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	if c.pat == "" {
		return fmt.Errorf("clarifai pat not configured")
	}
	url := fmt.Sprintf("%s/v2/users/%s/apps/%s/models", c.baseURL, c.userID, c.appID)
	headers := map[string]string{"Authorization": "Key " + c.pat}
	var out struct{}
	return transport.GetJSON(ctx, c.httpClient, url, headers, &out, "clarifai.probe")
}

// extractNDVI prefers an NDVI or vegetation concept; when the model labels
// regions differently it falls back to the highest-confidence concept.
func extractNDVI(response predictResponse) (ndvi, confidence float64, err error) {
	if len(response.Outputs) == 0 {
		return 0, 0, fmt.Errorf("no outputs in clarifai response")
	}
	regions := response.Outputs[0].Data.Regions
	if len(regions) == 0 {
		return 0, 0, fmt.Errorf("no regions in clarifai response")
	}
	concepts := regions[0].Data.Concepts
	if len(concepts) == 0 {
		return 0, 0, fmt.Errorf("no concepts in clarifai response")
	}

	for _, cpt := range concepts {
		name := strings.ToLower(cpt.Name)
		if strings.Contains(name, "ndvi") || strings.Contains(name, "vegetation") {
			return cpt.Value, cpt.Value, nil
		}
	}

	best := concepts[0]
	for _, cpt := range concepts[1:] {
		if cpt.Value > best.Value {
			best = cpt
		}
	}
	return best.Value, best.Value, nil
}
