package meallog

import "time"

// Entry is one analysed food photo.
type Entry struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Message       string    `json:"message"`
	NutritionPlan string    `json:"nutrition_plan"`
	CreatedAt     time.Time `json:"created_at"`
}
