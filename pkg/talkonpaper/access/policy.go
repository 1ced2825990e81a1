// Package access decides whether a viewer may see the full media of a
// content item.
package access

// Mode selects which assets the presentation layer surfaces.
type Mode string

const (
	ModeFull    Mode = "full"
	ModePreview Mode = "preview"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	HasAccess bool `json:"has_access"`
	Mode      Mode `json:"mode"`
	// Required is the tier the content demands after normalization.
	Required Tier `json:"required_tier"`
}

// Evaluate compares the tier a content item requires with the tier a viewer
// holds. An unrecognized content level denies every viewer and reports the
// most restrictive tier as required. An empty or unrecognized viewer level
// counts as public.
func Evaluate(contentLevel, viewerLevel string) Decision {
	required := ContentTier(contentLevel)
	d := Decision{Required: required, Mode: ModePreview}
	if !Tier(contentLevel).Valid() {
		return d
	}

	if ViewerTier(viewerLevel).Satisfies(required) {
		d.HasAccess = true
		d.Mode = ModeFull
	}
	return d
}
