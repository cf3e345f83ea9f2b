package conversation

import (
	"regexp"
	"strings"
)

const (
	tagMessage       = "message"
	tagNutritionPlan = "nutrition_plan"
	tagTrainingPlan  = "training_plan"
)

var (
	messagePattern   = sectionPattern(tagMessage)
	nutritionPattern = sectionPattern(tagNutritionPlan)
	trainingPattern  = sectionPattern(tagTrainingPlan)
)

func sectionPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
}

// Sections are the tagged parts of a single model reply.
// A section missing from the reply is the empty string.
type Sections struct {
	Message       string
	NutritionPlan string
	TrainingPlan  string
}

// Parse extracts the first <message>, <nutrition_plan> and <training_plan>
// sections from text. Content is returned verbatim, newlines included.
// Missing or malformed tags are not an error.
func Parse(text string) Sections {
	return Sections{
		Message:       firstMatch(messagePattern, text),
		NutritionPlan: firstMatch(nutritionPattern, text),
		TrainingPlan:  firstMatch(trainingPattern, text),
	}
}

func firstMatch(pattern *regexp.Regexp, text string) string {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}

	return match[1]
}

// Display returns the text shown to the user for raw.
// Without a <message> section the raw reply minus its tracker sections is shown,
// so a model that ignores the tag format still produces a readable bubble.
// A reply cut off inside a section keeps the text after an unclosed <message>
// and drops an unclosed plan, matching what MessageFilter streamed.
func (s Sections) Display(raw string) string {
	if s.Message != "" {
		return s.Message
	}

	text := StripSections(raw)

	if i := strings.Index(text, messageOpen); i >= 0 {
		text = text[i+len(messageOpen):]
	}

	for _, tag := range []string{tagNutritionPlan, tagTrainingPlan} {
		if i := strings.Index(text, "<"+tag+">"); i >= 0 {
			text = text[:i]
		}
	}

	for _, tag := range []string{tagMessage, tagNutritionPlan, tagTrainingPlan} {
		text = strings.ReplaceAll(text, "</"+tag+">", "")
	}

	return strings.TrimSpace(text)
}

// StripSections removes every complete tagged section from text.
func StripSections(text string) string {
	for _, pattern := range []*regexp.Regexp{messagePattern, nutritionPattern, trainingPattern} {
		text = pattern.ReplaceAllString(text, "")
	}

	return strings.TrimSpace(text)
}
