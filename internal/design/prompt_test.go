package design_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"train-design-backend/internal/design"
)

func TestBuildEditPrompt(t *testing.T) {
	previous := design.Snapshot{"trainHeadLength": 10000, "windowWidth": 1200}
	delta := design.Delta{"trainHeadLength": 11000}
	merged := previous.Merge(delta)

	prompt := design.BuildEditPrompt(delta, previous, merged)

	assert.Contains(t, prompt, "[Drafting standard]")
	assert.Contains(t, prompt, "[Requested changes]")
	assert.Contains(t, prompt, "10000mm -> 11000mm")
	assert.Contains(t, prompt, "[Full parameter set]")
	assert.Contains(t, prompt, "[View constraints]")
	assert.Contains(t, prompt, "[Prohibited]")
}

func TestBuildEditPrompt_BeforeFallsBackToDefault(t *testing.T) {
	delta := design.Delta{"windowWidth": 1500}
	merged := design.Snapshot{"windowWidth": 1500}

	prompt := design.BuildEditPrompt(delta, design.Snapshot{}, merged)

	assert.Contains(t, prompt, "1200mm -> 1500mm")
}

func TestBuildEditPrompt_AngleUnit(t *testing.T) {
	previous := design.Snapshot{"wiperAngle": 45}
	delta := design.Delta{"wiperAngle": 60}

	prompt := design.BuildEditPrompt(delta, previous, previous.Merge(delta))

	assert.Contains(t, prompt, "45deg -> 60deg")
}

func TestBuildEditPrompt_ChangesSorted(t *testing.T) {
	previous := design.Defaults()
	delta := design.Delta{"windowWidth": 1500, "trainHeadLength": 11000}

	prompt := design.BuildEditPrompt(delta, previous, previous.Merge(delta))

	head := strings.Index(prompt, design.FieldLabel("trainHeadLength"))
	window := strings.Index(prompt, design.FieldLabel("windowWidth"))
	assert.Greater(t, head, -1)
	assert.Greater(t, window, head)
}
