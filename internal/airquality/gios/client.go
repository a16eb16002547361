// Package gios provides a client for the GIOŚ air quality API together with
// the parsing and serialization of its JSON documents.
package gios

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the GIOŚ API.
	DefaultBaseURL = "https://api.gios.gov.pl/pjp-api/rest"

	// ProviderName identifies this provider.
	ProviderName = "gios"

	// maxResponseSize bounds the bytes read from a single response.
	maxResponseSize = 16 << 20
)

// Client errors.
var (
	// ErrUnexpectedPayload is returned when a successful response parses to nothing usable.
	ErrUnexpectedPayload = errors.New("unexpected response payload")

	// ErrIndexUnavailable is returned when the API has no index for a station.
	ErrIndexUnavailable = errors.New("air quality index not available for this station")
)

// TransportError describes a failed request to the API.
type TransportError struct {
	// Op names the logical request, e.g. "fetch stations".
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the GIOŚ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Parser converts response bodies (defaults to a UTC parser using Logger).
	Parser *Parser

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a GIOŚ API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	parser     *Parser
	logger     zerolog.Logger
}

// NewClient creates a new GIOŚ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Logger:          cfg.Logger,
		})
	}

	parser := cfg.Parser
	if parser == nil {
		parser = NewParser(ParserConfig{Logger: cfg.Logger})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		parser:     parser,
		logger:     cfg.Logger,
	}
}

// FetchStations retrieves all measuring stations.
func (c *Client) FetchStations(ctx context.Context) ([]airquality.Station, error) {
	body, err := c.get(ctx, "fetch stations", "/station/findAll")
	if err != nil {
		return nil, err
	}

	stations := c.parser.ParseStations(body)
	if len(stations) == 0 && !isEmptyArray(body) {
		return nil, fmt.Errorf("parse stations: %w", ErrUnexpectedPayload)
	}
	return stations, nil
}

// FetchSensors retrieves the sensors installed at a station.
func (c *Client) FetchSensors(ctx context.Context, stationID int) ([]airquality.Sensor, error) {
	body, err := c.get(ctx, "fetch sensors", fmt.Sprintf("/station/sensors/%d", stationID))
	if err != nil {
		return nil, err
	}

	sensors := c.parser.ParseSensors(body)
	if len(sensors) == 0 && !isEmptyArray(body) {
		return nil, fmt.Errorf("parse sensors: %w", ErrUnexpectedPayload)
	}
	return sensors, nil
}

// FetchSensorData retrieves the measurement series of a sensor.
func (c *Client) FetchSensorData(ctx context.Context, sensorID int) (airquality.SensorData, error) {
	body, err := c.get(ctx, "fetch sensor data", fmt.Sprintf("/data/getData/%d", sensorID))
	if err != nil {
		return airquality.SensorData{}, err
	}

	data := c.parser.ParseSensorData(body)
	if data.Key == "" {
		return airquality.SensorData{}, fmt.Errorf("parse sensor data: %w", ErrUnexpectedPayload)
	}
	return data, nil
}

// FetchAirQualityIndex retrieves the current air quality index of a station.
func (c *Client) FetchAirQualityIndex(ctx context.Context, stationID int) (airquality.AirQualityIndex, error) {
	body, err := c.get(ctx, "fetch air quality index", fmt.Sprintf("/aqindex/getIndex/%d", stationID))
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			te.Err = ErrIndexUnavailable
		}
		return airquality.EmptyIndex(), err
	}

	index := c.parser.ParseAirQualityIndex(body)
	if !index.Valid() {
		return airquality.EmptyIndex(), fmt.Errorf("parse air quality index: %w", ErrUnexpectedPayload)
	}
	return index, nil
}

// get performs a GET request and returns the response body.
func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("op", op).Str("url", url).Msg("requesting GIOŚ API")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().Str("op", op).Int("bytes", len(body)).Msg("received GIOŚ response")
	return body, nil
}

// isEmptyArray reports whether body is a JSON array with no elements.
func isEmptyArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
}
