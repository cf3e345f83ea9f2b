package conversation

type TrackerKind string

const (
	TrackerNutrition TrackerKind = "nutrition"
	TrackerTraining  TrackerKind = "training"
)

// Trackers hold the latest nutrition and training plan text.
// A value is only ever replaced by a non-empty one.
type Trackers struct {
	nutrition string
	training  string
}

// Set overwrites the tracker when value is non-empty and reports whether it did.
func (t *Trackers) Set(kind TrackerKind, value string) bool {
	if value == "" {
		return false
	}

	switch kind {
	case TrackerNutrition:
		t.nutrition = value
	case TrackerTraining:
		t.training = value
	default:
		return false
	}

	return true
}

func (t *Trackers) Get(kind TrackerKind) string {
	switch kind {
	case TrackerNutrition:
		return t.nutrition
	case TrackerTraining:
		return t.training
	default:
		return ""
	}
}

func (t *Trackers) Nutrition() string {
	return t.nutrition
}

func (t *Trackers) Training() string {
	return t.training
}
