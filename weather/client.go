// Package weather fetches current conditions from Open-Meteo and serves them
// through the cache with a freshness bound.
package weather

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

const (
	defaultTimeout = 10 * time.Second
	forecastPath   = "/v1/forecast"

	// Open-Meteo serves current_weather.time in this layout, without a zone.
	openMeteoTimeLayout = "2006-01-02T15:04"
)

// Client is the upstream Open-Meteo client. It implements
// types.WeatherProvider.
type Client struct {
	client  *fasthttp.Client
	logger  types.Logger
	baseURL string
	timeout time.Duration
	retries int
}

func NewClient(logger types.Logger, config *types.WeatherConfig) *Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		logger:  logger,
		baseURL: config.BaseURL,
		timeout: timeout,
		retries: config.Retries,
	}
}

type openMeteoResponse struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	CurrentWeather struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		WeatherCode   int     `json:"weathercode"`
		Time          string  `json:"time"`
	} `json:"current_weather"`
}

// Current fetches the live observation for the given coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*types.WeatherReading, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, types.Errorf(types.ErrWeatherOutOfRange, "lat=%f lon=%f", lat, lon)
	}

	body, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	var parsed openMeteoResponse
	if err := utils.Unmarshal(body, &parsed); err != nil {
		return nil, types.WrapError(err, types.ErrWeatherDecodeFailed.Error())
	}

	observedAt, err := time.Parse(openMeteoTimeLayout, parsed.CurrentWeather.Time)
	if err != nil {
		// Missing or malformed observation time is tolerable, the reading
		// itself is still usable.
		observedAt = time.Now().UTC()
	}

	return &types.WeatherReading{
		Latitude:      parsed.Latitude,
		Longitude:     parsed.Longitude,
		TemperatureC:  parsed.CurrentWeather.Temperature,
		WindSpeedKmh:  parsed.CurrentWeather.WindSpeed,
		WindDirection: parsed.CurrentWeather.WindDirection,
		WeatherCode:   parsed.CurrentWeather.WeatherCode,
		Description:   DescribeWeatherCode(parsed.CurrentWeather.WeatherCode),
		ObservedAt:    observedAt,
	}, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + forecastPath)
	req.URI().QueryArgs().Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	req.URI().QueryArgs().Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	req.URI().QueryArgs().Set("current_weather", "true")
	req.Header.SetMethod(fasthttp.MethodGet)

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		err := c.client.DoTimeout(req, resp, c.timeout)
		statusCode := resp.StatusCode()

		if err == nil && statusCode == fasthttp.StatusOK {
			body := make([]byte, len(resp.Body()))
			copy(body, resp.Body())
			return body, nil
		}

		lastErr = err
		if err == nil {
			lastErr = types.NewErrorf("HTTP %d", statusCode)
		}

		if attempt < c.retries {
			// Client errors other than throttling and timeout will not
			// succeed on retry.
			if err == nil && statusCode >= 400 && statusCode < 500 &&
				statusCode != fasthttp.StatusTooManyRequests &&
				statusCode != fasthttp.StatusRequestTimeout {
				break
			}

			backoff := time.Duration(attempt+1) * 500 * time.Millisecond

			select {
			case <-time.After(backoff):
				c.logger.Debug("Retrying weather fetch",
					zap.Duration("backoff", backoff),
					zap.Error(lastErr))
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, types.Errorf(types.ErrWeatherFetchFailed, "all %d attempts failed: %v", c.retries+1, lastErr)
}
