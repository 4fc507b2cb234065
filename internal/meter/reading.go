package meter

import (
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// EnergySuffix marks cumulative energy registers in the device's column
// naming convention (e.g. "CT 14 - Furnace [kWh]").
const EnergySuffix = "[kWh]"

// Reading is one cumulative snapshot of all energy registers, with the
// date/hour/TOU period derived from its timestamp at parse time.
type Reading struct {
	Timestamp time.Time
	Date      string // YYYY-MM-DD in the parser's location
	Hour      int
	Period    tariff.Period

	// Energy maps register column name (suffix included) to the cumulative
	// kWh counter value. Counters may count down; consumers diff with abs.
	Energy map[string]float64
}

// DisplayName strips the energy-unit suffix from a register name.
func DisplayName(register string) string {
	return strings.TrimSuffix(strings.TrimSuffix(register, EnergySuffix), " ")
}

// IsEnergyRegister reports whether a column name follows the cumulative
// energy register convention.
func IsEnergyRegister(name string) bool {
	return strings.HasSuffix(name, EnergySuffix)
}
