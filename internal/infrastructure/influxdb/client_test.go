package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/govee-bridge/internal/infrastructure/config"
)

// fakeServer answers pings and records write bodies.
type fakeServer struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/write") {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeServer) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "govee",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), testConfig(url))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_WriteReading(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // test cleanup

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteReading(ReadingPoint{
		AccessoryID: "acc-1",
		Name:        "Govee H5075 A1B2",
		Model:       "H5075",
		Values:      map[string]float64{"temperature": 21.5},
		RSSI:        -60,
		At:          time.Unix(1700000000, 0),
	})
	client.Flush()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(fake.body(), MeasurementReading) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	got := fake.body()
	for _, want := range []string{MeasurementReading, "accessory_id=acc-1", "temperature=21.5", "rssi=-60i"} {
		if !strings.Contains(got, want) {
			t.Errorf("write body %q missing %q", got, want)
		}
	}
}

func TestClient_AfterClose(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	// No-ops once closed.
	client.WriteReading(ReadingPoint{AccessoryID: "x", Values: map[string]float64{"battery": 90}})
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestNewReadingPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		in      ReadingPoint
		wantNil bool
		want    []string
		notWant []string
	}{
		{
			name:    "no values",
			in:      ReadingPoint{AccessoryID: "a", At: at},
			wantNil: true,
		},
		{
			name: "full reading",
			in: ReadingPoint{
				AccessoryID: "a",
				Name:        "Garden",
				Model:       "H5075",
				Values:      map[string]float64{"humidity": 48.2, "battery": 20},
				RSSI:        -71,
				LowBattery:  true,
				At:          at,
			},
			want: []string{"govee_reading,", "accessory_id=a", "model=H5075", "name=Garden",
				"humidity=48.2", "battery=20", "rssi=-71i", "low_battery=true", "1700000000"},
		},
		{
			name: "without rssi or name",
			in: ReadingPoint{
				AccessoryID: "b",
				Values:      map[string]float64{"temperature": -3},
				At:          at,
			},
			want:    []string{"accessory_id=b", "temperature=-3", "low_battery=false"},
			notWant: []string{"rssi=", "name=", "model="},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newReadingPoint(tt.in)
			if tt.wantNil {
				if p != nil {
					t.Fatal("expected nil point")
				}
				return
			}
			if p == nil {
				t.Fatal("expected a point")
			}
			line := write.PointToLineProtocol(p, time.Second)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(line, w) {
					t.Errorf("line %q should not contain %q", line, w)
				}
			}
		})
	}
}
