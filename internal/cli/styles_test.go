package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatters(t *testing.T) {
	assert.Contains(t, FormatSuccess("saved"), "saved")
	assert.Contains(t, FormatSuccess("saved"), SuccessIcon)
	assert.Contains(t, FormatError("boom"), ErrorIcon)
	assert.Contains(t, FormatWarning("careful"), "careful")
	assert.Contains(t, FormatInfo("fyi"), "fyi")
	assert.Contains(t, FormatTitle("Rules"), "Rules")
	assert.Contains(t, FormatPrompt("Continue?"), "Continue?")
}

func TestFormatDetail(t *testing.T) {
	out := FormatDetail("Name", "Taxi", "Description", "", "Priority", "50")

	assert.Contains(t, out, "Taxi")
	assert.Contains(t, out, "50")
	assert.NotContains(t, out, "Description")
	assert.Equal(t, 2, strings.Count(out, "\n")+1)
}

func TestRenderBox(t *testing.T) {
	out := RenderBox("Summary", "3 classified")
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "3 classified")
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, 3, "Classifying receipts...")
	p.Set(1)
	p.Set(3)
	p.Finish()

	assert.Contains(t, out.String(), "3/3")
}
