// Package weather reads live weather for the environment snapshot.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Condition is the coarse weather category events are keyed on.
type Condition string

const (
	Sunny  Condition = "sunny"
	Cloudy Condition = "cloudy"
	Rainy  Condition = "rainy"
	Snowy  Condition = "snowy"
	Stormy Condition = "stormy"
	Foggy  Condition = "foggy"
)

// Label returns the Japanese name of the condition.
func (c Condition) Label() string {
	switch c {
	case Sunny:
		return "晴れ"
	case Cloudy:
		return "曇り"
	case Rainy:
		return "雨"
	case Snowy:
		return "雪"
	case Stormy:
		return "嵐"
	case Foggy:
		return "霧"
	default:
		return string(c)
	}
}

// Reading is one observation. Any pointer field may be nil when the
// upstream did not report it.
type Reading struct {
	Condition   Condition `json:"condition"`
	Description string    `json:"description"`
	Temperature *float64  `json:"temperature,omitempty"` // Celsius
	Humidity    *float64  `json:"humidity,omitempty"`    // percent
	WindSpeed   *float64  `json:"wind_speed,omitempty"`  // m/s
	ObservedAt  time.Time `json:"observed_at"`
}

// Oracle returns the current weather.
type Oracle interface {
	CurrentWeather(ctx context.Context) (*Reading, error)
}

// Static always returns the same reading. Useful offline and in tests.
type Static struct {
	Reading *Reading
	Err     error
}

func (s Static) CurrentWeather(context.Context) (*Reading, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Reading, nil
}

// OpenWeatherClient fetches weather from OpenWeatherMap with a response
// cache and exponential backoff after failures.
type OpenWeatherClient struct {
	apiKey   string
	location string
	baseURL  string
	client   *http.Client

	mu          sync.Mutex
	cached      *Reading
	cachedAt    time.Time
	cacheTTL    time.Duration
	lastFailAt  time.Time
	failBackoff time.Duration
	now         func() time.Time
	logger      *zap.Logger

	refreshes singleflight.Group
}

// NewOpenWeatherClient creates a client. Returns nil if apiKey is empty.
func NewOpenWeatherClient(apiKey, location string, cacheTTL time.Duration, logger *zap.Logger) *OpenWeatherClient {
	if apiKey == "" {
		return nil
	}
	if location == "" {
		location = "Tokyo,JP"
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &OpenWeatherClient{
		apiKey:   apiKey,
		location: location,
		baseURL:  "https://api.openweathermap.org/data/2.5/weather",
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// SetBaseURL points the client at another endpoint.
func (c *OpenWeatherClient) SetBaseURL(u string) { c.baseURL = u }

// CurrentWeather returns the cached reading while fresh, otherwise fetches.
// During backoff a stale reading is preferred over an error. A fetch the
// caller stops waiting for keeps running and fills the cache for the next
// call; only upstream errors count toward the backoff.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context) (*Reading, error) {
	c.mu.Lock()
	now := c.now()
	if c.cached != nil && now.Sub(c.cachedAt) < c.cacheTTL {
		defer c.mu.Unlock()
		return c.cached, nil
	}
	if c.failBackoff > 0 && now.Sub(c.lastFailAt) < c.failBackoff {
		defer c.mu.Unlock()
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, fmt.Errorf("weather API backoff (%s remaining)", c.failBackoff-now.Sub(c.lastFailAt))
	}
	c.mu.Unlock()

	ch := c.refreshes.DoChan("current", func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			if stale := c.stale(); stale != nil {
				c.logger.Warn("weather fetch failed, serving stale reading", zap.Error(res.Err))
				return stale, nil
			}
			return nil, res.Err
		}
		return res.Val.(*Reading), nil
	case <-ctx.Done():
		if stale := c.stale(); stale != nil {
			return stale, nil
		}
		return nil, fmt.Errorf("weather: %w", ctx.Err())
	}
}

// refresh fetches a reading and records the outcome. The HTTP client
// timeout bounds it.
func (c *OpenWeatherClient) refresh(ctx context.Context) (*Reading, error) {
	reading, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if err != nil {
		c.lastFailAt = now
		if c.failBackoff == 0 {
			c.failBackoff = time.Minute
		} else if c.failBackoff < 10*time.Minute {
			c.failBackoff *= 2
		}
		return nil, err
	}
	c.cached = reading
	c.cachedAt = now
	c.failBackoff = 0
	return reading, nil
}

func (c *OpenWeatherClient) stale() *Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

type owmResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

func (c *OpenWeatherClient) fetch(ctx context.Context) (*Reading, error) {
	q := url.Values{}
	q.Set("q", c.location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "ja")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, string(body))
	}

	var owm owmResponse
	if err := json.Unmarshal(body, &owm); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}

	r := &Reading{Condition: Sunny, ObservedAt: c.now()}
	if owm.Main != nil {
		r.Temperature = owm.Main.Temp
		r.Humidity = owm.Main.Humidity
	}
	if owm.Wind != nil {
		r.WindSpeed = owm.Wind.Speed
	}
	if len(owm.Weather) > 0 {
		r.Description = owm.Weather[0].Description
		r.Condition = conditionFor(owm.Weather[0].Main)
	}
	if r.WindSpeed != nil && *r.WindSpeed > 15 {
		r.Condition = Stormy
	}

	c.logger.Debug("weather fetched",
		zap.String("condition", string(r.Condition)),
		zap.String("description", r.Description))
	return r, nil
}

func conditionFor(main string) Condition {
	switch strings.ToLower(main) {
	case "clear":
		return Sunny
	case "clouds":
		return Cloudy
	case "rain", "drizzle":
		return Rainy
	case "snow":
		return Snowy
	case "thunderstorm", "squall", "tornado":
		return Stormy
	case "mist", "fog", "haze", "smoke", "dust", "sand", "ash":
		return Foggy
	default:
		return Cloudy
	}
}
