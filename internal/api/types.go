package api

// StationsData is the getstationsdata reply
type StationsData struct {
	Status     string        `json:"status"`
	TimeServer int64         `json:"time_server"`
	Body       *StationsBody `json:"body"`
}

// StationsBody lists the account's weather stations
type StationsBody struct {
	Devices []Station `json:"devices"`
}

// Station is a main weather-station module and its attached modules
type Station struct {
	ID            string           `json:"_id"`
	StationName   string           `json:"station_name,omitempty"`
	ModuleName    string           `json:"module_name,omitempty"`
	Type          string           `json:"type,omitempty"`
	Reachable     *bool            `json:"reachable,omitempty"`
	DashboardData StationDashboard `json:"dashboard_data"`
	Modules       []StationModule  `json:"modules"`
}

// StationDashboard holds the indoor module's latest readings
type StationDashboard struct {
	TimeUTC          int64   `json:"time_utc"`
	Temperature      float64 `json:"Temperature"`
	CO2              int     `json:"CO2"`
	Humidity         int     `json:"Humidity"`
	Noise            int     `json:"Noise"`
	Pressure         float64 `json:"Pressure"`
	AbsolutePressure float64 `json:"AbsolutePressure"`
	TempTrend        string  `json:"temp_trend,omitempty"`
	PressureTrend    string  `json:"pressure_trend,omitempty"`
}

// StationModule is an additional module (outdoor, rain, wind, indoor)
type StationModule struct {
	ID             string          `json:"_id"`
	ModuleName     string          `json:"module_name,omitempty"`
	Type           string          `json:"type,omitempty"`
	BatteryPercent int             `json:"battery_percent"`
	Reachable      *bool           `json:"reachable,omitempty"`
	DashboardData  ModuleDashboard `json:"dashboard_data"`
}

// ModuleDashboard holds an additional module's latest readings
type ModuleDashboard struct {
	TimeUTC     int64   `json:"time_utc"`
	Temperature float64 `json:"Temperature"`
	Humidity    int     `json:"Humidity"`
	TempTrend   string  `json:"temp_trend,omitempty"`
}

// HomeCoachsData is the gethomecoachsdata reply
type HomeCoachsData struct {
	Status     string          `json:"status"`
	TimeServer int64           `json:"time_server"`
	Body       *HomeCoachsBody `json:"body"`
}

// HomeCoachsBody lists the account's indoor air-quality monitors
type HomeCoachsBody struct {
	Devices []HomeCoach `json:"devices"`
}

// HomeCoach is an indoor air-quality monitor
type HomeCoach struct {
	ID            string             `json:"_id"`
	StationName   string             `json:"station_name,omitempty"`
	Name          string             `json:"name,omitempty"`
	Type          string             `json:"type,omitempty"`
	Reachable     *bool              `json:"reachable,omitempty"`
	DashboardData HomeCoachDashboard `json:"dashboard_data"`
}

// HomeCoachDashboard holds a home coach's latest readings. HealthIdx runs
// from 0 (healthy) to 4 (unhealthy).
type HomeCoachDashboard struct {
	TimeUTC          int64   `json:"time_utc"`
	Temperature      float64 `json:"Temperature"`
	CO2              int     `json:"CO2"`
	Humidity         int     `json:"Humidity"`
	Noise            int     `json:"Noise"`
	Pressure         float64 `json:"Pressure"`
	AbsolutePressure float64 `json:"AbsolutePressure"`
	HealthIdx        int     `json:"health_idx"`
}

// reachable reports false only when the payload says so; older payloads
// omit the field
func reachable(r *bool) bool {
	return r == nil || *r
}

// IsReachable reports whether the station was reachable at its last reading
func (s Station) IsReachable() bool { return reachable(s.Reachable) }

// IsReachable reports whether the module was reachable at its last reading
func (m StationModule) IsReachable() bool { return reachable(m.Reachable) }

// IsReachable reports whether the home coach was reachable at its last reading
func (h HomeCoach) IsReachable() bool { return reachable(h.Reachable) }

// DisplayName prefers the station name over the module name
func (s Station) DisplayName() string {
	if s.StationName != "" {
		return s.StationName
	}
	if s.ModuleName != "" {
		return s.ModuleName
	}
	return s.ID
}

// DisplayName prefers the user-assigned name
func (h HomeCoach) DisplayName() string {
	switch {
	case h.Name != "":
		return h.Name
	case h.StationName != "":
		return h.StationName
	}
	return h.ID
}

// DisplayName prefers the module name
func (m StationModule) DisplayName() string {
	if m.ModuleName != "" {
		return m.ModuleName
	}
	return m.ID
}
