// tool-weather serves forecasts and active alerts from the National
// Weather Service API (api.weather.gov). No API key required.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

const nwsBase = "https://api.weather.gov"

var httpClient = &http.Client{Timeout: 30 * time.Second}

func main() {
	toolproc.Main(map[string]toolproc.Handler{
		"get_forecast": getForecast,
		"get_alerts":   getAlerts,
	})
}

type pointsResponse struct {
	Properties struct {
		Forecast       string `json:"forecast"`
		ForecastHourly string `json:"forecastHourly"`
		GridID         string `json:"gridId"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name             string `json:"name"`
	StartTime        string `json:"startTime"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			Event       string `json:"event"`
			Severity    string `json:"severity"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			AreaDesc    string `json:"areaDesc"`
			Expires     string `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

type forecastResult struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Office    string           `json:"office"`
	Hourly    bool             `json:"hourly"`
	Periods   []forecastPeriod `json:"periods"`
}

func getForecast(req toolproc.Request) (any, error) {
	lat, okLat := req.Float("latitude")
	lon, okLon := req.Float("longitude")
	if !okLat || !okLon {
		return nil, fmt.Errorf("latitude and longitude parameters are required")
	}
	hourly := req.Bool("hourly")

	var points pointsResponse
	if err := fetchJSON(fmt.Sprintf("%s/points/%f,%f", nwsBase, lat, lon), &points); err != nil {
		return nil, fmt.Errorf("resolving grid point: %w", err)
	}

	forecastURL := points.Properties.Forecast
	if hourly {
		forecastURL = points.Properties.ForecastHourly
	}
	if forecastURL == "" {
		return nil, fmt.Errorf("no forecast available for %f,%f", lat, lon)
	}

	var forecast forecastResponse
	if err := fetchJSON(forecastURL, &forecast); err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	periods := forecast.Properties.Periods
	// The hourly feed runs out a full week; cap it.
	if hourly && len(periods) > 24 {
		periods = periods[:24]
	}

	return forecastResult{
		Latitude:  lat,
		Longitude: lon,
		Office:    points.Properties.GridID,
		Hourly:    hourly,
		Periods:   periods,
	}, nil
}

type alertEntry struct {
	Event    string `json:"event"`
	Severity string `json:"severity"`
	Headline string `json:"headline"`
	Area     string `json:"area"`
	Expires  string `json:"expires"`
}

type alertsResult struct {
	State  string       `json:"state"`
	Count  int          `json:"count"`
	Alerts []alertEntry `json:"alerts"`
}

func getAlerts(req toolproc.Request) (any, error) {
	state := strings.ToUpper(strings.TrimSpace(req.String("state", "")))
	if len(state) != 2 {
		return nil, fmt.Errorf("state parameter must be a two-letter code")
	}

	var alerts alertsResponse
	if err := fetchJSON(fmt.Sprintf("%s/alerts/active?area=%s", nwsBase, state), &alerts); err != nil {
		return nil, fmt.Errorf("fetching alerts: %w", err)
	}

	result := alertsResult{State: state, Alerts: []alertEntry{}}
	for _, f := range alerts.Features {
		result.Alerts = append(result.Alerts, alertEntry{
			Event:    f.Properties.Event,
			Severity: f.Properties.Severity,
			Headline: f.Properties.Headline,
			Area:     f.Properties.AreaDesc,
			Expires:  f.Properties.Expires,
		})
	}
	result.Count = len(result.Alerts)
	return result, nil
}

func fetchJSON(url string, target any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", "jarvis-tool-weather/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, target)
}
