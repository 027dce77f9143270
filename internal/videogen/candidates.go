package videogen

import (
	"slices"
	"strings"
)

const (
	// ModelVeo3Fast is the canonical 3.0 fast model and the default when a caller names none.
	ModelVeo3Fast = "veo-3.0-fast-generate-001"
	// ModelVeo3 is the canonical 3.0 standard model.
	ModelVeo3 = "veo-3.0-generate-001"

	// DefaultModel is used when a request does not specify a model.
	DefaultModel = ModelVeo3Fast
	// DefaultAspectRatio is used when a request does not specify a ratio.
	DefaultAspectRatio = "16:9"

	veo31Prefix = "veo-3.1"
)

// CandidateModels returns the ordered list of models to try for the preferred model.
// The preferred model always comes first, the list never holds duplicates and both
// canonical 3.0 models are always present.
func CandidateModels(preferred string) []string {
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		preferred = DefaultModel
	}

	models := []string{preferred}
	if strings.HasPrefix(preferred, veo31Prefix) {
		if strings.Contains(preferred, "fast") {
			models = append(models, ModelVeo3Fast, ModelVeo3)
		} else {
			models = append(models, ModelVeo3, ModelVeo3Fast)
		}
	}

	for _, fallback := range []string{ModelVeo3Fast, ModelVeo3} {
		if !slices.Contains(models, fallback) {
			models = append(models, fallback)
		}
	}

	return models
}
