package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/atmo/internal/api"
	"github.com/fastertools/atmo/internal/polling"
)

var reachable, unreachable = true, false

func sampleCycle() polling.Cycle {
	return polling.Cycle{
		Number:    4,
		StartedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Stations: &api.StationsData{Status: "ok", TimeServer: 1709294400, Body: &api.StationsBody{Devices: []api.Station{{
			ID:          "70:ee:50:00:00:01",
			StationName: "Cabin",
			Reachable:   &reachable,
			DashboardData: api.StationDashboard{
				TimeUTC:       1700000000,
				Temperature:   18.34,
				Humidity:      40,
				TempTrend:     "up",
				PressureTrend: "down",
			},
			Modules: []api.StationModule{{
				ID:             "02:00:00:00:00:01",
				BatteryPercent: 12,
				Reachable:      &unreachable,
			}},
		}}}},
	}
}

func TestConsoleSink_Table(t *testing.T) {
	var buf bytes.Buffer
	sink := newConsoleSink(&buf, OutputFormatTable)

	require.NoError(t, sink.Present(sampleCycle()))

	out := buf.String()
	assert.Contains(t, out, "Cycle 4 at 2024-03-01 12:00:00")
	assert.Contains(t, out, "(server time "+time.Unix(1709294400, 0).Format(time.DateTime)+")")
	assert.Contains(t, out, "TEMP TREND")
	assert.Contains(t, out, "PRESSURE TREND")
	assert.Contains(t, out, "up")
	assert.Contains(t, out, "down")
	assert.Contains(t, out, "Cabin")
	assert.Contains(t, out, "18.3°C")
	assert.Contains(t, out, "02:00:00:00:00:01")
	assert.Contains(t, out, "12%")
	assert.Contains(t, out, "unreachable")
	assert.NotContains(t, out, "HOME COACH")
}

func TestConsoleSink_MissingReachableIsNotUnreachable(t *testing.T) {
	var buf bytes.Buffer
	sink := newConsoleSink(&buf, OutputFormatTable)

	c := polling.Cycle{
		Number:    1,
		StartedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		HomeCoachs: &api.HomeCoachsData{Body: &api.HomeCoachsBody{Devices: []api.HomeCoach{{
			ID:            "70:ee:50:00:00:02",
			Name:          "Bedroom",
			DashboardData: api.HomeCoachDashboard{TimeUTC: 1700000000, Temperature: 20},
		}}}},
	}
	require.NoError(t, sink.Present(c))

	out := buf.String()
	assert.Contains(t, out, "Bedroom")
	assert.Contains(t, out, time.Unix(1700000000, 0).Format(time.TimeOnly))
	assert.NotContains(t, out, "unreachable")
	assert.NotContains(t, out, "server time")
}

func TestConsoleSink_JSONIncludesErrors(t *testing.T) {
	var buf bytes.Buffer
	sink := newConsoleSink(&buf, OutputFormatJSON)

	c := sampleCycle()
	c.HomeCoachsErr = errors.New("GET /api/gethomecoachsdata: transport error")
	require.NoError(t, sink.Present(c))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(4), got["cycle"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["started_at"])
	assert.Contains(t, got, "stations")
	assert.NotContains(t, got, "home_coachs")
	assert.Equal(t, "GET /api/gethomecoachsdata: transport error", got["home_coachs_error"])
}

func TestHealthIndex(t *testing.T) {
	assert.Equal(t, "healthy", healthIndex(0))
	assert.Equal(t, "unhealthy", healthIndex(4))
	assert.Equal(t, "7", healthIndex(7))
	assert.Equal(t, "-1", healthIndex(-1))
}
