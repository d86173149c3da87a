package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const clearSky = `{"main":{"temp":18.5,"humidity":62},"weather":[{"main":"Clear","description":"晴天"}],"wind":{"speed":3.2}}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*OpenWeatherClient, *time.Time) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewOpenWeatherClient("test-key", "Tokyo,JP", 30*time.Minute, zap.NewNop())
	c.SetBaseURL(srv.URL)
	now := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCurrentWeatherParsesReading(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "test-key" || r.URL.Query().Get("units") != "metric" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(clearSky))
	})

	got, err := c.CurrentWeather(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Condition != Sunny || got.Description != "晴天" {
		t.Errorf("reading = %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 18.5 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.WindSpeed == nil || *got.WindSpeed != 3.2 {
		t.Errorf("wind = %v", got.WindSpeed)
	}
}

func TestCurrentWeatherMissingFieldsStayNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weather":[{"main":"Fog","description":"霧"}]}`))
	})
	got, err := c.CurrentWeather(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Condition != Foggy {
		t.Errorf("condition = %s", got.Condition)
	}
	if got.Temperature != nil || got.Humidity != nil || got.WindSpeed != nil {
		t.Errorf("absent fields should be nil: %+v", got)
	}
}

func TestCurrentWeatherCaches(t *testing.T) {
	var calls atomic.Int32
	c, now := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(clearSky))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.CurrentWeather(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	*now = now.Add(31 * time.Minute)
	if _, err := c.CurrentWeather(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls after expiry = %d, want 2", calls.Load())
	}
}

func TestCurrentWeatherBacksOff(t *testing.T) {
	var calls atomic.Int32
	c, now := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	if _, err := c.CurrentWeather(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.CurrentWeather(context.Background()); err == nil {
		t.Fatal("expected backoff error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls during backoff = %d, want 1", calls.Load())
	}

	*now = now.Add(2 * time.Minute)
	c.CurrentWeather(context.Background())
	if calls.Load() != 2 {
		t.Errorf("calls after backoff = %d, want 2", calls.Load())
	}
}

func TestAbandonedFetchFillsCache(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(clearSky))
	})
	t.Cleanup(unblock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.CurrentWeather(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	unblock()

	deadline := time.Now().Add(2 * time.Second)
	for c.stale() == nil {
		if time.Now().After(deadline) {
			t.Fatal("background fetch never filled the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, err := c.CurrentWeather(context.Background())
	if err != nil || got.Condition != Sunny {
		t.Fatalf("reading = %+v, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failBackoff != 0 {
		t.Errorf("caller timeout started a backoff of %s", c.failBackoff)
	}
}

func TestStrongWindIsStormy(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weather":[{"main":"Rain","description":"雨"}],"wind":{"speed":18}}`))
	})
	got, err := c.CurrentWeather(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Condition != Stormy {
		t.Errorf("condition = %s", got.Condition)
	}
}

func TestStaticOracle(t *testing.T) {
	boom := errors.New("boom")
	if _, err := (Static{Err: boom}).CurrentWeather(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	r := &Reading{Condition: Rainy}
	got, _ := Static{Reading: r}.CurrentWeather(context.Background())
	if got != r {
		t.Error("static reading not returned")
	}
}

func TestNewClientWithoutKey(t *testing.T) {
	if NewOpenWeatherClient("", "", 0, zap.NewNop()) != nil {
		t.Error("expected nil client without api key")
	}
}
