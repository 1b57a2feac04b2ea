package noaa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func noaaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", got)
		}
		fmt.Fprintf(w, `{"properties":{"observationStations":"%s/gridpoints/HFO/stations"}}`, server.URL)
	})
	mux.HandleFunc("/gridpoints/HFO/stations", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features":[{"properties":{"stationIdentifier":"PHOG"}},{"properties":{"stationIdentifier":"PHNL"}}]}`)
	})
	mux.HandleFunc("/stations/PHOG/observations/latest", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"properties":{
			"temperature":{"value":30.0},
			"relativeHumidity":{"value":42.5},
			"windSpeed":{"value":10.0},
			"textDescription":"Mostly Clear"
		}}`)
	})

	server = httptest.NewServer(mux)
	return server
}

func TestFetchWeatherConvertsUnits(t *testing.T) {
	server := noaaTestServer(t)
	defer server.Close()

	client := New(server.URL, "test-agent", Options{})
	wx, err := client.FetchWeather(context.Background(), 20.8783, -156.6825, false)
	if err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}

	if wx.TemperatureF != 86 {
		t.Fatalf("TemperatureF = %v, want 86 (30°C)", wx.TemperatureF)
	}
	if wx.HumidityPercent != 42.5 {
		t.Fatalf("HumidityPercent = %v, want 42.5", wx.HumidityPercent)
	}
	if diff := wx.WindSpeedMph - 22.37; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("WindSpeedMph = %v, want 22.37 (10 m/s)", wx.WindSpeedMph)
	}
	if wx.Conditions != "mostly clear" {
		t.Fatalf("Conditions = %q, want lowercased description", wx.Conditions)
	}
}

func TestFetchWeatherDefaultsMissingMeasurements(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/points/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"properties":{"observationStations":"%s/stations-list"}}`, server.URL)
	})
	mux.HandleFunc("/stations-list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features":[{"properties":{"stationIdentifier":"PHTO"}}]}`)
	})
	mux.HandleFunc("/stations/PHTO/observations/latest", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"properties":{"temperature":{"value":null},"relativeHumidity":{"value":null},"windSpeed":{"value":null},"textDescription":""}}`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, "test-agent", Options{})
	wx, err := client.FetchWeather(context.Background(), 19.7297, -155.09, false)
	if err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}
	if wx.TemperatureF != 75 || wx.HumidityPercent != 65 || wx.WindSpeedMph != 10 {
		t.Fatalf("expected per-field defaults, got %+v", wx)
	}
	if wx.Conditions != "partly cloudy" {
		t.Fatalf("Conditions = %q, want partly cloudy", wx.Conditions)
	}
}

func TestFetchWeatherErrorsOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "test-agent", Options{})
	_, err := client.FetchWeather(context.Background(), 20.8783, -156.6825, false)
	if err == nil {
		t.Fatal("expected error from failing upstream")
	}
}

func TestFetchWeatherDemoModeIsDeterministic(t *testing.T) {
	client := New("http://unused.invalid", "test-agent", Options{})

	first, err := client.FetchWeather(context.Background(), 20.8783, -156.6825, true)
	if err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}
	second, _ := client.FetchWeather(context.Background(), 20.8783, -156.6825, true)
	if first != second {
		t.Fatalf("demo weather not deterministic: %+v vs %+v", first, second)
	}
	if first.TemperatureF < 73 || first.TemperatureF > 83 {
		t.Fatalf("TemperatureF = %v, want within demo band 73..83", first.TemperatureF)
	}
}
