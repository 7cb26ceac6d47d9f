package design

import (
	"fmt"
	"sort"
	"strings"
)

// BuildEditPrompt produces the instruction sent to the image synthesizer for
// one edit. It names the changed fields with their before/after values,
// lists the full merged parameter set, and pins the drafting constraints so
// only the named fields may visually change between generations.
func BuildEditPrompt(delta Delta, previous, merged Snapshot) string {
	changed := make([]string, 0, len(delta))
	for field := range delta {
		changed = append(changed, field)
	}
	sort.Strings(changed)

	var b strings.Builder

	b.WriteString("[Drafting standard]\n")
	b.WriteString("Engineering drawing, orthographic projection, no perspective, plain white background, monochrome grayscale body.\n")
	b.WriteString("Clean external contour lines, no shadows, no reflections, no motion blur.\n")
	b.WriteString("No logos, text, decorative textures or environment elements.\n\n")

	b.WriteString("[Requested changes]\n")
	for _, field := range changed {
		before, ok := previous[field]
		if !ok {
			before = DefaultValue(field)
		}
		fmt.Fprintf(&b, "%s: %d%s -> %d%s\n",
			FieldLabel(field), before, FieldUnit(field), delta[field], FieldUnit(field))
	}
	b.WriteString("\n[Full parameter set]\n")
	for _, field := range sortedFields(merged) {
		fmt.Fprintf(&b, "%s: %d%s\n", FieldLabel(field), merged[field], FieldUnit(field))
	}

	b.WriteString("\n[View constraints]\n")
	b.WriteString("Side view: contour defined by five continuous spline segments, windows evenly distributed.\n")
	b.WriteString("Front view: cross-section is a rounded rectangle with a top arc and vertical side walls.\n")
	b.WriteString("Both the front view and the side view must be preserved, unscaled and unrepositioned, with key dimensions strictly consistent between the two views.\n\n")

	b.WriteString("[Prohibited]\n")
	b.WriteString("No artistic exaggeration, no brand marks, no perspective effects.\n")
	b.WriteString("Only the parameters listed under requested changes may visually change.\n\n")

	b.WriteString("Update the drawing to these parameters while keeping the engineering drafting standard.")

	return b.String()
}

func sortedFields(s Snapshot) []string {
	fields := make([]string, 0, len(s))
	for field := range s {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
