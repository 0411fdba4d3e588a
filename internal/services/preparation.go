package services

import "github.com/tbourn/go-negotiation-backend/internal/domain"

// Checklist categories.
const (
	ChecklistResearch    = "research"
	ChecklistPreparation = "preparation"
	ChecklistPractice    = "practice"
	ChecklistLogistics   = "logistics"
)

var checklistCategories = map[string]struct{}{
	ChecklistResearch: {}, ChecklistPreparation: {}, ChecklistPractice: {}, ChecklistLogistics: {},
}

// defaultChecklist seeds every new session.
func defaultChecklist() []domain.ChecklistItem {
	return []domain.ChecklistItem{
		{Category: ChecklistResearch, Label: "Look up the market range for the role and location"},
		{Category: ChecklistResearch, Label: "Research the company's compensation philosophy and recent funding"},
		{Category: ChecklistPreparation, Label: "Set minimum, target and ideal numbers"},
		{Category: ChecklistPreparation, Label: "List three quantified achievements"},
		{Category: ChecklistPreparation, Label: "Decide which non-salary terms matter most"},
		{Category: ChecklistPractice, Label: "Rehearse the opening and the counter out loud"},
		{Category: ChecklistPractice, Label: "Practice responses to a final-offer objection"},
		{Category: ChecklistLogistics, Label: "Confirm the decision deadline in writing"},
		{Category: ChecklistLogistics, Label: "Get the final offer in writing before accepting"},
	}
}

// defaultExercises seeds every new session.
func defaultExercises() []domain.ConfidenceExercise {
	return []domain.ConfidenceExercise{
		{Kind: "rehearsal", Title: "Say your target number out loud", Instructions: "State your target salary five times without hedging words like \"maybe\" or \"around\"."},
		{Kind: "reflection", Title: "Write down your wins", Instructions: "List three results you delivered and the numbers behind them."},
		{Kind: "silence", Title: "Hold the pause", Instructions: "After stating a counter, count to ten before speaking again."},
		{Kind: "objection", Title: "Handle the budget objection", Instructions: "Prepare two responses to \"that's outside our budget\" that keep the conversation open."},
		{Kind: "role_play", Title: "Run a mock negotiation", Instructions: "Practice the whole conversation with a friend or the practice coach."},
	}
}
