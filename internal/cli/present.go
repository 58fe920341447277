package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fastertools/atmo/internal/api"
	"github.com/fastertools/atmo/internal/polling"
)

// consoleSink presents each poll cycle as tables or one JSON document
type consoleSink struct {
	out *DataWriter
}

func newConsoleSink(w io.Writer, format OutputFormat) *consoleSink {
	return &consoleSink{out: NewDataWriter(w, format)}
}

// cycleReport is the JSON shape of one cycle
type cycleReport struct {
	Cycle         int                 `json:"cycle"`
	StartedAt     time.Time           `json:"started_at"`
	Stations      *api.StationsData   `json:"stations,omitempty"`
	HomeCoachs    *api.HomeCoachsData `json:"home_coachs,omitempty"`
	StationsErr   string              `json:"stations_error,omitempty"`
	HomeCoachsErr string              `json:"home_coachs_error,omitempty"`
}

// Present implements polling.Sink
func (s *consoleSink) Present(c polling.Cycle) error {
	if s.out.Format() == OutputFormatJSON {
		report := cycleReport{
			Cycle:      c.Number,
			StartedAt:  c.StartedAt.UTC(),
			Stations:   c.Stations,
			HomeCoachs: c.HomeCoachs,
		}
		if c.StationsErr != nil {
			report.StationsErr = c.StationsErr.Error()
		}
		if c.HomeCoachsErr != nil {
			report.HomeCoachsErr = c.HomeCoachsErr.Error()
		}
		return s.out.WriteJSON(report)
	}

	title := fmt.Sprintf("Cycle %d at %s", c.Number, c.StartedAt.Format(time.DateTime))
	if ts := serverTime(c); ts != 0 {
		title += fmt.Sprintf(" (server time %s)", time.Unix(ts, 0).Format(time.DateTime))
	}
	if c.Stations != nil && c.Stations.Body != nil {
		if err := stationsTable(title, c.Stations.Body.Devices).Write(s.out); err != nil {
			return err
		}
		title = ""
	}
	if c.HomeCoachs != nil && c.HomeCoachs.Body != nil {
		if err := homeCoachsTable(title, c.HomeCoachs.Body.Devices).Write(s.out); err != nil {
			return err
		}
	}
	return nil
}

// serverTime returns the provider clock of the first payload that has one
func serverTime(c polling.Cycle) int64 {
	if c.Stations != nil && c.Stations.TimeServer != 0 {
		return c.Stations.TimeServer
	}
	if c.HomeCoachs != nil {
		return c.HomeCoachs.TimeServer
	}
	return 0
}

func stationsTable(title string, stations []api.Station) *TableBuilder {
	tb := NewTableBuilder(title, "STATION", "MODULE", "TEMP", "TEMP TREND", "HUMIDITY", "CO2", "NOISE", "PRESSURE", "PRESSURE TREND", "BATTERY", "UPDATED")
	for _, st := range stations {
		d := st.DashboardData
		tb.AddRow(
			st.DisplayName(),
			orDash(st.ModuleName),
			celsius(d.Temperature),
			orDash(d.TempTrend),
			percent(d.Humidity),
			ppm(d.CO2),
			decibels(d.Noise),
			millibars(d.Pressure),
			orDash(d.PressureTrend),
			"-",
			updated(d.TimeUTC, st.IsReachable()),
		)
		for _, m := range st.Modules {
			md := m.DashboardData
			tb.AddRow(
				"",
				m.DisplayName(),
				celsius(md.Temperature),
				orDash(md.TempTrend),
				percent(md.Humidity),
				"-",
				"-",
				"-",
				"-",
				percent(m.BatteryPercent),
				updated(md.TimeUTC, m.IsReachable()),
			)
		}
	}
	return tb
}

func homeCoachsTable(title string, coaches []api.HomeCoach) *TableBuilder {
	tb := NewTableBuilder(title, "HOME COACH", "TEMP", "HUMIDITY", "CO2", "NOISE", "PRESSURE", "HEALTH", "UPDATED")
	for _, hc := range coaches {
		d := hc.DashboardData
		tb.AddRow(
			hc.DisplayName(),
			celsius(d.Temperature),
			percent(d.Humidity),
			ppm(d.CO2),
			decibels(d.Noise),
			millibars(d.Pressure),
			healthIndex(d.HealthIdx),
			updated(d.TimeUTC, hc.IsReachable()),
		)
	}
	return tb
}

var healthLabels = []string{"healthy", "fine", "fair", "poor", "unhealthy"}

func healthIndex(idx int) string {
	if idx < 0 || idx >= len(healthLabels) {
		return strconv.Itoa(idx)
	}
	return healthLabels[idx]
}

func updated(utc int64, reachable bool) string {
	if !reachable {
		return "unreachable"
	}
	if utc == 0 {
		return "-"
	}
	return time.Unix(utc, 0).Format(time.TimeOnly)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func celsius(v float64) string   { return strconv.FormatFloat(v, 'f', 1, 64) + "°C" }
func millibars(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + " mbar" }
func percent(v int) string       { return strconv.Itoa(v) + "%" }
func ppm(v int) string           { return strconv.Itoa(v) + " ppm" }
func decibels(v int) string      { return strconv.Itoa(v) + " dB" }
