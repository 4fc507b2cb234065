package ws

import (
	"encoding/json"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Server -> Client
	TypeLiveUpdate  = "live:update"
	TypeTodayUpdate = "today:update"

	// Client -> Server
	TypeRefresh = "refresh"
)

// CircuitWatts is one circuit's instantaneous draw.
type CircuitWatts struct {
	Name  string  `json:"name"`
	Watts float64 `json:"watts"`
}

// PowerFlow is the live whole-house energy flow from telemetry, in kW.
type PowerFlow struct {
	SolarKW   float64 `json:"solar_kw"`
	GridKW    float64 `json:"grid_kw"`
	BatteryKW float64 `json:"battery_kw"`
	LoadKW    float64 `json:"load_kw"`
}

// SourceMix is the share of home load served by each supply, in percent.
// Only supplies count: solar generating, battery discharging, grid
// importing. Outflows (charging, exporting) are not sources.
type SourceMix struct {
	Solar   float64 `json:"solar"`
	Battery float64 `json:"battery"`
	Grid    float64 `json:"grid"`
}

// LivePayload is the periodic instantaneous snapshot pushed to clients.
type LivePayload struct {
	Timestamp   string         `json:"timestamp"`
	TOUPeriod   string         `json:"tou_period"`
	TOURate     float64        `json:"tou_rate"`
	TotalUsageW float64        `json:"total_usage_w"`
	Circuits    []CircuitWatts `json:"circuits"`
	Flow        *PowerFlow     `json:"flow,omitempty"`
	BatterySOC  float64        `json:"battery_soc"`
	SourceMix   *SourceMix     `json:"source_mix,omitempty"`
	TodayKWh    float64        `json:"today_kwh"`
	TodayCost   float64        `json:"today_cost"`
}

// TodayTotals is the rolled-up day so far, refreshed each poll cycle.
type TodayTotals struct {
	Date        string  `json:"date"`
	TotalKWh    float64 `json:"total_kwh"`
	TotalCost   float64 `json:"total_cost"`
	PartialHour bool    `json:"partial_hour"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
