package design

import "sort"

// Snapshot holds the current value of every design parameter for one user.
// Values are integer magnitudes in millimeters, except the angle fields
// which are in degrees.
type Snapshot map[string]int

// Delta maps parameter names to the literal value each should take after an
// edit. Unknown parameter names may appear here; the parameter store ignores
// them.
type Delta map[string]int

// fieldDefaults is the full parameter schema for a high-speed train head
// drawing, with factory defaults. mm unless noted.
var fieldDefaults = map[string]int{
	// Overall geometry
	"headCarTotalLength": 28550,
	"maxWidth":           3360,
	"maxHeight":          3850,
	"centerToRailHeight": 1500,
	"railGauge":          1435,

	// Head geometry
	"trainHeadLength":   10500,
	"headBogieDistance": 5200,
	"couplerHeight":     1000,

	// Wiper system
	"wiperLength":   2100,
	"wiperAngle":    72, // degrees
	"wiperPosition": 2200,

	// Bogie
	"bogieAxleDistance":   2500,
	"bogieCenterDistance": 17800,
	"wheelDiameter":       920,

	// Cross section
	"crossSectionPosition": 10500,
	"topArcRadius":         200,

	// Commonly edited fields
	"trainHeadHeight":     3850,
	"cabinHeight":         3850,
	"streamlineCurvature": 72, // degrees
	"windowWidth":         1200,
	"windowHeight":        800,
	"chassisHeight":       1500,
}

// fieldLabels provides human-readable names used when building the
// generation prompt.
var fieldLabels = map[string]string{
	"headCarTotalLength":   "head car total length",
	"maxWidth":             "maximum cross-section width",
	"maxHeight":            "maximum vehicle height",
	"centerToRailHeight":   "vehicle center to rail height",
	"railGauge":            "rail gauge",
	"trainHeadLength":      "train head length",
	"headBogieDistance":    "head bogie distance",
	"couplerHeight":        "coupler center height",
	"wiperLength":          "wiper length",
	"wiperAngle":           "wiper mounting angle",
	"wiperPosition":        "wiper mounting position",
	"bogieAxleDistance":    "bogie axle distance",
	"bogieCenterDistance":  "bogie center distance",
	"wheelDiameter":        "wheel diameter",
	"crossSectionPosition": "cross-section position",
	"topArcRadius":         "top arc radius",
	"trainHeadHeight":      "train head height",
	"cabinHeight":          "cab height",
	"streamlineCurvature":  "streamline curvature",
	"windowWidth":          "window width",
	"windowHeight":         "window height",
	"chassisHeight":        "chassis height",
}

// angleFields are expressed in degrees rather than millimeters.
var angleFields = map[string]bool{
	"wiperAngle":          true,
	"streamlineCurvature": true,
}

// Defaults returns a fresh snapshot populated with the schema defaults.
func Defaults() Snapshot {
	s := make(Snapshot, len(fieldDefaults))
	for name, value := range fieldDefaults {
		s[name] = value
	}
	return s
}

// IsField reports whether name is part of the parameter schema.
func IsField(name string) bool {
	_, ok := fieldDefaults[name]
	return ok
}

// DefaultValue returns the schema default for a field, or zero for unknown
// names.
func DefaultValue(name string) int {
	return fieldDefaults[name]
}

// FieldNames returns every schema field name in sorted order.
func FieldNames() []string {
	names := make([]string, 0, len(fieldDefaults))
	for name := range fieldDefaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldLabel returns the human-readable label for a field, falling back to
// the raw name for unknown fields.
func FieldLabel(name string) string {
	if label, ok := fieldLabels[name]; ok {
		return label
	}
	return name
}

// FieldUnit returns "mm" or "deg" for a schema field.
func FieldUnit(name string) string {
	if angleFields[name] {
		return "deg"
	}
	return "mm"
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, value := range s {
		out[name] = value
	}
	return out
}

// Merge overlays a resolved delta on top of the snapshot and returns the
// result. The receiver is not modified. Unknown fields in the delta are
// carried into the result so the ledger's audit snapshot records exactly
// what the interpreter produced.
func (s Snapshot) Merge(delta Delta) Snapshot {
	out := s.Clone()
	for name, value := range delta {
		out[name] = value
	}
	return out
}
