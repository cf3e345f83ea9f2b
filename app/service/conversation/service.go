package conversation

import (
	"context"
	"errors"
	"fitagent/app/client/llm"
	"fitagent/app/config"
	"fitagent/app/service/meallog"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed image_prompt.txt
var imagePromptTemplate string

const (
	noNutritionPlan = "No nutrition plan yet."

	// APIKeyNotice is shown to the user while no API key is available.
	APIKeyNotice = "Please add your OpenAI API key to continue."
)

var (
	ErrNoAPIKey   = errors.New("no OpenAI API key")
	ErrEmptyInput = errors.New("input is empty")
	ErrModel      = errors.New("model request failed")
)

// Model is the hosted language/vision model.
type Model interface {
	Chat(ctx context.Context, apiKey string, messages []llm.Message, onChunk func(string)) (string, error)
	Vision(ctx context.Context, apiKey, prompt string, image []byte, mimeType string) (string, error)
}

// Journal records image analyses outside of the session.
type Journal interface {
	Record(ctx context.Context, entry meallog.Entry) error
}

type Service struct {
	cfg     *config.Config
	model   Model
	journal Journal
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*llm.Client](di),
		do.MustInvoke[*meallog.Service](di),
	), nil
}

func NewService(cfg *config.Config, model Model, journal Journal) *Service {
	return &Service{
		cfg:     cfg,
		model:   model,
		journal: journal,
	}
}

// Start creates an empty session state seeded with the coaching system prompt.
func (s *Service) Start(id string) *State {
	return NewState(id, strings.TrimSpace(systemPrompt))
}

// Chat appends the user's text to both histories, sends the internal history to the model
// and applies the tagged reply: raw text to the internal history, the message to the external
// history and non-empty plans to the trackers. onChunk, when set, receives the message text
// as it streams in.
func (s *Service) Chat(ctx context.Context, st *State, text string, onChunk func(string)) (View, error) {
	if strings.TrimSpace(text) == "" {
		return View{}, ErrEmptyInput
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	start := time.Now()
	st.Touch(start)

	apiKey := s.apiKey(st, s.cfg.OpenAI.Chat)
	if apiKey == "" {
		return View{}, ErrNoAPIKey
	}

	st.appendBoth(RoleUser, text)

	var stream func(string)
	if onChunk != nil {
		var filter MessageFilter
		stream = func(chunk string) {
			if out := filter.Feed(chunk); out != "" {
				onChunk(out)
			}
		}
	}

	raw, err := s.model.Chat(ctx, apiKey, toModelMessages(st.internal.All()), stream)
	if err != nil {
		return View{}, fmt.Errorf("%w: chat: %w", ErrModel, err)
	}

	slog.Debug("Raw model output", "session", st.id, "raw", raw)

	sections := Parse(raw)

	st.internal.Append(RoleAssistant, raw)
	st.external.Append(RoleAssistant, sections.Display(raw))
	nutritionUpdated := st.trackers.Set(TrackerNutrition, sections.NutritionPlan)
	trainingUpdated := st.trackers.Set(TrackerTraining, sections.TrainingPlan)

	slog.Info("Processed chat message",
		"session", st.id,
		"nutrition_updated", nutritionUpdated,
		"training_updated", trainingUpdated,
		"duration", time.Since(start))

	return s.view(st), nil
}

// AnalyzeImage sends a food photo to the vision model. The reply's message is shown in both
// histories and a non-empty nutrition plan replaces the nutrition tracker.
func (s *Service) AnalyzeImage(ctx context.Context, st *State, image []byte, mimeType string) (View, error) {
	if len(image) == 0 {
		return View{}, ErrEmptyInput
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	start := time.Now()
	st.Touch(start)

	apiKey := s.apiKey(st, s.cfg.OpenAI.Vision)
	if apiKey == "" {
		return View{}, ErrNoAPIKey
	}

	st.appendBoth(RoleUser, imageUploadNotice)

	currentPlan := st.trackers.Nutrition()
	if currentPlan == "" {
		currentPlan = noNutritionPlan
	}
	prompt := renderTemplate(imagePromptTemplate, map[string]string{
		"nutrition_plan": currentPlan,
	})

	raw, err := s.model.Vision(ctx, apiKey, prompt, image, mimeType)
	if err != nil {
		return View{}, fmt.Errorf("%w: vision: %w", ErrModel, err)
	}

	slog.Debug("Raw vision output", "session", st.id, "raw", raw)

	sections := Parse(raw)
	message := sections.Display(raw)

	updated := st.trackers.Set(TrackerNutrition, sections.NutritionPlan)
	st.appendBoth(RoleAssistant, message)

	s.record(ctx, meallog.Entry{
		ID:            uuid.NewString(),
		SessionID:     st.id,
		Message:       message,
		NutritionPlan: sections.NutritionPlan,
		CreatedAt:     start,
	})

	slog.Info("Processed food photo",
		"session", st.id,
		"size", len(image),
		"nutrition_updated", updated,
		"duration", time.Since(start))

	return s.view(st), nil
}

func (s *Service) SetAPIKey(st *State, key string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.apiKey = strings.TrimSpace(key)
	st.Touch(time.Now())
}

func (s *Service) View(st *State) View {
	st.mu.Lock()
	defer st.mu.Unlock()

	return s.view(st)
}

func (s *Service) view(st *State) View {
	v := st.view()
	v.HasAPIKey = s.apiKey(st, s.cfg.OpenAI.Chat) != ""

	return v
}

func (s *Service) apiKey(st *State, model config.ModelConfig) string {
	if st.apiKey != "" {
		return st.apiKey
	}

	return model.Token
}

func (s *Service) record(ctx context.Context, entry meallog.Entry) {
	if s.journal == nil {
		return
	}

	if err := s.journal.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record meal", "session", entry.SessionID, "error", err)
	}
}

func toModelMessages(messages []Message) []llm.Message {
	return pie.Map(messages, func(m Message) llm.Message {
		return llm.Message{
			Role:    string(m.Role),
			Content: m.Content,
		}
	})
}

func renderTemplate(template string, values map[string]string) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}

	return result
}
