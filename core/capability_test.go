package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapability_TagForm(t *testing.T) {
	c := NewCapability("summarize", "")
	assert.Equal(t, DefaultCapabilityVersion, c.Version)
	assert.Equal(t, "summarize@1.0.0", c.String())

	assert.Equal(t, Capability{Name: "ocr", Version: "2.1.0"}, ParseCapability("ocr@2.1.0"))
	assert.Equal(t, Capability{Name: "ocr"}, ParseCapability("ocr"))
	assert.Equal(t, "ocr", ParseCapability("ocr").String())

	assert.Equal(t, []string{"a@1.0.0", "b@2.0.0"}, Tags(NewCapability("a", ""), NewCapability("b", "2.0.0")))
}

func TestHasCapability_MatchesNameAcrossVersions(t *testing.T) {
	id := MustIdentity("w", "ocr@2.1.0", "translate")

	assert.True(t, id.HasCapability("ocr"))
	assert.True(t, id.HasCapability("ocr@2.1.0"))
	assert.False(t, id.HasCapability("ocr@1.0.0"))
	assert.True(t, id.HasCapability("translate"))
	assert.False(t, id.HasCapability("translate@1.0.0"))
	assert.False(t, id.HasCapability("summarize"))

	rec := PresenceRecord{AgentID: "w", Capabilities: id.Capabilities()}
	assert.True(t, rec.HasCapability("ocr"))
	assert.False(t, rec.HasCapability("ocr@3.0.0"))
}
