package conversation

import (
	"sync"
	"sync/atomic"
	"time"
)

const imageUploadNotice = "Uploaded a photo of food"

type HistoryKind int

const (
	// HistoryInternal is what the model sees, raw tagged replies included.
	HistoryInternal HistoryKind = iota
	// HistoryExternal is what the user sees.
	HistoryExternal
)

// State is everything one user session owns. Methods other than ID and
// IdleSince are not synchronized; Service holds mu for a whole interaction.
type State struct {
	mu sync.Mutex

	id        string
	internal  History
	external  History
	trackers  Trackers
	apiKey    string
	createdAt time.Time
	touchedAt atomic.Int64
}

type View struct {
	Messages      []Message `json:"messages"`
	NutritionPlan string    `json:"nutrition_plan"`
	TrainingPlan  string    `json:"training_plan"`
	HasAPIKey     bool      `json:"has_api_key"`
}

// NewState creates an empty session. The internal history starts with the system prompt.
func NewState(id, systemPrompt string) *State {
	now := time.Now()

	s := &State{
		id:        id,
		createdAt: now,
	}
	s.touchedAt.Store(now.UnixNano())

	if systemPrompt != "" {
		s.internal.Append(RoleSystem, systemPrompt)
	}

	return s
}

func (s *State) ID() string {
	return s.id
}

func (s *State) CreatedAt() time.Time {
	return s.createdAt
}

func (s *State) Touch(now time.Time) {
	s.touchedAt.Store(now.UnixNano())
}

func (s *State) IdleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.touchedAt.Load()))
}

func (s *State) history(kind HistoryKind) *History {
	if kind == HistoryInternal {
		return &s.internal
	}

	return &s.external
}

func (s *State) Append(kind HistoryKind, role Role, content string) {
	s.history(kind).Append(role, content)
}

// appendBoth records a turn that reads the same for the model and the user.
func (s *State) appendBoth(role Role, content string) {
	s.internal.Append(role, content)
	s.external.Append(role, content)
}

func (s *State) Messages(kind HistoryKind) []Message {
	return s.history(kind).All()
}

func (s *State) SetTracker(kind TrackerKind, value string) bool {
	return s.trackers.Set(kind, value)
}

func (s *State) Tracker(kind TrackerKind) string {
	return s.trackers.Get(kind)
}

func (s *State) view() View {
	return View{
		Messages:      s.external.All(),
		NutritionPlan: s.trackers.Nutrition(),
		TrainingPlan:  s.trackers.Training(),
	}
}
