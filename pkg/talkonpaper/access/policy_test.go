package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_TierMatrix(t *testing.T) {
	for _, content := range Tiers() {
		for _, viewer := range Tiers() {
			t.Run(string(content)+"/"+string(viewer), func(t *testing.T) {
				d := Evaluate(string(content), string(viewer))
				want := viewer.Rank() >= content.Rank()
				assert.Equal(t, want, d.HasAccess)
				if want {
					assert.Equal(t, ModeFull, d.Mode)
				} else {
					assert.Equal(t, ModePreview, d.Mode)
				}
				assert.Equal(t, content, d.Required)
			})
		}
	}
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		viewer    string
		hasAccess bool
		mode      Mode
	}{
		{"public content anonymous viewer", "public", "", true, ModeFull},
		{"premium content registered viewer", "academic_premium", "registered", false, ModePreview},
		{"registered content anonymous viewer", "registered", "", false, ModePreview},
		{"registered content premium viewer", "registered", "academic_premium", true, ModeFull},
		{"bogus content tier premium viewer", "bogus-tier", "academic_premium", false, ModePreview},
		{"empty content tier premium viewer", "", "academic_premium", false, ModePreview},
		{"bogus viewer tier public content", "public", "gold", true, ModeFull},
		{"bogus viewer tier registered content", "registered", "gold", false, ModePreview},
		{"uppercase content tier is unknown", "PUBLIC", "", false, ModePreview},
		{"padded content tier is unknown", " registered ", "academic_premium", false, ModePreview},
		{"uppercase viewer tier counts as public", "registered", "REGISTERED", false, ModePreview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.content, tt.viewer)
			assert.Equal(t, tt.hasAccess, d.HasAccess)
			assert.Equal(t, tt.mode, d.Mode)
		})
	}
}

func TestEvaluate_UnknownContentDeniesEveryViewer(t *testing.T) {
	for _, content := range []string{"future_tier", "", "Academic_Premium", "public "} {
		for _, viewer := range append(Tiers(), "", "gold") {
			d := Evaluate(content, string(viewer))
			assert.Equal(t, TierAcademicPremium, d.Required, "content %q viewer %q", content, viewer)
			assert.False(t, d.HasAccess, "content %q viewer %q", content, viewer)
			assert.Equal(t, ModePreview, d.Mode, "content %q viewer %q", content, viewer)
		}
	}
}

func TestContentAndViewerTier_ExactMatch(t *testing.T) {
	assert.Equal(t, TierRegistered, ContentTier("registered"))
	assert.Equal(t, TierAcademicPremium, ContentTier("REGISTERED"))
	assert.Equal(t, TierAcademicPremium, ContentTier(" public"))

	assert.Equal(t, TierAcademicPremium, ViewerTier("academic_premium"))
	assert.Equal(t, TierPublic, ViewerTier("Academic_Premium"))
	assert.Equal(t, TierPublic, ViewerTier(""))
}

func TestTier_Eligible(t *testing.T) {
	assert.Equal(t, []Tier{TierPublic, TierRegistered, TierAcademicPremium}, TierPublic.Eligible())
	assert.Equal(t, []Tier{TierRegistered, TierAcademicPremium}, TierRegistered.Eligible())
	assert.Equal(t, []Tier{TierAcademicPremium}, TierAcademicPremium.Eligible())
	assert.Nil(t, Tier("nope").Eligible())
}

func TestTiers_ReturnsCopy(t *testing.T) {
	list := Tiers()
	list[0] = "mutated"
	assert.Equal(t, TierPublic, Tiers()[0])
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier("Academic_Premium")
	assert.True(t, ok)
	assert.Equal(t, TierAcademicPremium, tier)

	_, ok = ParseTier("platinum")
	assert.False(t, ok)
}
