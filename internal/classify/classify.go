package classify

import (
	"strings"

	"github.com/repstack/repstack-backend/internal/types"
)

// Classification carries the derived fields the import engine writes onto a
// library card. It is a keyword heuristic over the exercise name, nothing
// more: compound names ("Banded Row Carry") can and do misclassify, and the
// tables below are the contract, not any intended taxonomy.
type Classification struct {
	ExerciseType   types.ExerciseType
	TracksWeight   bool
	TracksReps     bool
	TracksDuration bool
	TracksDistance bool
}

type typeRule struct {
	keywords []string
	result   types.ExerciseType
}

// Evaluated in order; the first rule with a matching keyword wins.
var typeRules = []typeRule{
	{keywords: []string{"squat", "deadlift", "press"}, result: types.ExerciseTypeStrength},
	{keywords: []string{"run", "sprint", "jog"}, result: types.ExerciseTypeCardio},
	{keywords: []string{"stretch", "mobility", "yoga"}, result: types.ExerciseTypeMobility},
	{keywords: []string{"plyo", "jump", "box"}, result: types.ExerciseTypePlyometric},
	{keywords: []string{"throw", "medicine ball", "slam"}, result: types.ExerciseTypePower},
}

var (
	bodyweightKeywords = []string{"push up", "pull up", "bodyweight", "plank", "burpee"}
	durationKeywords   = []string{"plank", "hold", "carry", "run", "row", "bike"}
	repSuppressing     = []string{"plank", "hold", "carry", "run", "row"}
	distanceKeywords   = []string{"run", "sprint", "row", "bike", "swim"}
)

// Classify derives a library card's type and tracked-metric flags from its
// name. Matching is case-insensitive substring containment.
func Classify(name string) Classification {
	lower := strings.ToLower(name)

	out := Classification{
		ExerciseType: types.ExerciseTypeStrength,
		TracksWeight: true,
		TracksReps:   true,
	}

	for _, rule := range typeRules {
		if containsAny(lower, rule.keywords) {
			out.ExerciseType = rule.result
			break
		}
	}

	if containsAny(lower, bodyweightKeywords) {
		out.TracksWeight = false
	}
	if containsAny(lower, repSuppressing) {
		out.TracksReps = false
	}
	out.TracksDuration = containsAny(lower, durationKeywords)
	out.TracksDistance = containsAny(lower, distanceKeywords)

	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
