// vehicle/params.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vehicle

// Parameter names owned by the navigation engine.
const (
	ParamEnable       = "SNAV_ENABLE"     // master enable (0/1)
	ParamLogLevel     = "SNAV_LOG_LVL"    // status verbosity 0/1/2
	ParamRadius       = "SNAV_RADIUS"     // area radius m; 0 -> polygon mode
	ParamRollLimit    = "SNAV_ROLL_LIMIT" // max commanded roll, degrees
	ParamWPRadius     = "SNAV_WP_RADIUS"  // waypoint acceptance radius m
	ParamGainP        = "SNAV_P"
	ParamGainD        = "SNAV_D"
	ParamTMemEnable   = "SNAV_TMEM_ENABLE"
	ParamHotspotLife  = "SNAV_TMEM_LIFE"  // hotspot lifetime, seconds
	ParamWindCompBase = "SNAV_WIND_COMP"  // wind-compensation base factor
)

// Externally owned parameters the engine reads but never writes (except
// the radius fallback after a bad polygon load).
const (
	ParamSoarAltMin   = "SOAR_ALT_MIN"
	ParamSoarAltMax   = "SOAR_ALT_MAX"
	ParamAirframeRoll = "LIM_ROLL_DEG" // airframe roll limit, degrees
)

// MapParams is a map-backed ParameterStore for hosts and tests.
type MapParams map[string]float32

func (m MapParams) Get(name string) (float32, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapParams) Set(name string, value float32) bool {
	m[name] = value
	return true
}

// DefaultParams returns a store populated with the engine's default
// tunables and typical airframe values.
func DefaultParams() MapParams {
	return MapParams{
		ParamEnable:       1,
		ParamLogLevel:     1,
		ParamRadius:       600,
		ParamRollLimit:    30,
		ParamWPRadius:     50,
		ParamGainP:        0.6,
		ParamGainD:        0.05,
		ParamTMemEnable:   1,
		ParamHotspotLife:  1200,
		ParamWindCompBase: 20,
		ParamSoarAltMin:   100,
		ParamSoarAltMax:   400,
		ParamAirframeRoll: 45,
	}
}
