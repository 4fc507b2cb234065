package meter

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CircuitPower is one circuit's instantaneous draw.
type CircuitPower struct {
	Name  string  `json:"name"`
	Watts float64 `json:"watts"`
}

// InstantSnapshot is the parsed live register dump.
type InstantSnapshot struct {
	Circuits    []CircuitPower
	TotalUsageW float64
}

type instantDoc struct {
	XMLName   xml.Name      `xml:"data"`
	Registers []instantReg  `xml:"r"`
}

type instantReg struct {
	Name    string  `xml:"n,attr"`
	RegType string  `xml:"rt,attr"`
	Inst    *string `xml:"i"`
}

// ParseInstantXML parses the device's instantaneous XML register dump.
// The device reports consumption as negative watts; circuit values are
// returned as magnitudes, sorted descending. Aggregate "total" registers
// feed TotalUsageW and are kept out of the circuit list.
func ParseInstantXML(r io.Reader) (InstantSnapshot, error) {
	var doc instantDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return InstantSnapshot{}, fmt.Errorf("parsing instant XML: %w", err)
	}

	var snap InstantSnapshot
	for _, reg := range doc.Registers {
		if reg.Inst == nil {
			continue
		}
		watts, err := strconv.ParseFloat(strings.TrimSpace(*reg.Inst), 64)
		if err != nil {
			continue
		}

		if reg.RegType == "total" {
			if strings.Contains(reg.Name, "Usage") {
				snap.TotalUsageW = watts
			}
			continue
		}
		if strings.Contains(reg.Name, "Total Power") {
			continue
		}
		snap.Circuits = append(snap.Circuits, CircuitPower{
			Name:  reg.Name,
			Watts: math.Abs(watts),
		})
	}

	sort.SliceStable(snap.Circuits, func(i, j int) bool {
		return snap.Circuits[i].Watts > snap.Circuits[j].Watts
	})
	return snap, nil
}
