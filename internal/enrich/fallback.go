package enrich

import "strings"

// abbreviations maps ICAO contractions found in NOTAM free text to plain
// English. Used to build the provisional explanation shown when the
// explanation service is unavailable at notification time.
var abbreviations = map[string]string{
	"ACFT":    "aircraft",
	"AD":      "aerodrome",
	"AMDT":    "amendment",
	"APCH":    "approach",
	"APN":     "apron",
	"ARP":     "aerodrome reference point",
	"ATC":     "air traffic control",
	"ATS":     "air traffic services",
	"AUTH":    "authorized",
	"AVBL":    "available",
	"BLW":     "below",
	"BTN":     "between",
	"CLSD":    "closed",
	"CNL":     "cancelled",
	"CTN":     "caution",
	"DEP":     "departure",
	"DLY":     "daily",
	"DRG":     "during",
	"EQPT":    "equipment",
	"EXC":     "except",
	"FLW":     "follow",
	"FREQ":    "frequency",
	"GND":     "ground",
	"HEL":     "helicopter",
	"HGT":     "height",
	"HR":      "hours",
	"ILS":     "instrument landing system",
	"INFO":    "information",
	"INTL":    "international",
	"LGT":     "lighting",
	"LGTD":    "lighted",
	"LTD":     "limited",
	"MAINT":   "maintenance",
	"NAV":     "navigation",
	"NML":     "normal",
	"NOTAMN":  "new notice to air missions",
	"NOTAMC":  "cancelling notice to air missions",
	"NOTAMR":  "replacing notice to air missions",
	"OBST":    "obstacle",
	"OPN":     "operational",
	"OPS":     "operations",
	"PSN":     "position",
	"RDO":     "radio",
	"REF":     "reference",
	"RTE":     "route",
	"RWY":     "runway",
	"SFC":     "surface",
	"SKED":    "schedule",
	"SVC":     "service",
	"TFC":     "traffic",
	"THR":     "threshold",
	"TKOF":    "takeoff",
	"TWR":     "tower",
	"TWY":     "taxiway",
	"U/S":     "unserviceable",
	"UNAVBL":  "unavailable",
	"UFN":     "until further notice",
	"VOR":     "VHF omnidirectional range",
	"WDI":     "wind direction indicator",
	"WEF":     "with effect from",
	"WI":      "within",
	"WIP":     "work in progress",
	"WX":      "weather",
}

// Expand substitutes known aviation contractions in raw NOTAM text with
// their plain-English expansions. The output is a provisional stand-in for
// a proper explanation, not a replacement for one.
func Expand(text string) string {
	if text == "" {
		return ""
	}
	fields := strings.Fields(text)
	for i, f := range fields {
		key := strings.ToUpper(strings.Trim(f, ".,;:()"))
		if full, ok := abbreviations[key]; ok {
			fields[i] = strings.Replace(f, strings.Trim(f, ".,;:()"), full, 1)
		}
	}
	return strings.Join(fields, " ")
}
