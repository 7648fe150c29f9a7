package core

import (
	"time"

	"github.com/agentmem/agentmem-go/pkg/types"
)

// RelevanceScorer computes deterministic relevance scores in [0, 1].
// Scores depend only on context content and the scoring time, so any node
// recomputing a score from the same inputs gets the same answer.
type RelevanceScorer struct {
	now func() time.Time
}

// NewRelevanceScorer creates a scorer using the wall clock.
func NewRelevanceScorer() *RelevanceScorer {
	return &RelevanceScorer{now: time.Now}
}

// ScoreContext computes the relevance score for a context.
//
// Profile and analysis contexts carry fixed scores. Conversation, task and
// insight contexts average fresh per-entry scores, falling back to the 0.5
// baseline when empty.
func (s *RelevanceScorer) ScoreContext(record *types.MemoryContext) float64 {
	switch record.ContextType {
	case types.ContextTypeConversation:
		return s.scoreConversation(&record.Content)
	case types.ContextTypeUserProfile:
		return 0.9
	case types.ContextTypeBusinessAnalysis:
		return 0.8
	case types.ContextTypeTaskExecution:
		return s.scoreTasks(&record.Content)
	case types.ContextTypeLearningInsights:
		return s.scoreInsights(&record.Content)
	default:
		return 0.5
	}
}

func (s *RelevanceScorer) scoreConversation(content *types.ContextContent) float64 {
	if len(content.ConversationHistory) == 0 {
		return 0.5
	}

	var sum float64
	for i := range content.ConversationHistory {
		sum += s.ScoreConversationEntry(&content.ConversationHistory[i])
	}
	return clamp01(sum / float64(len(content.ConversationHistory)))
}

// ScoreConversationEntry scores a single conversation turn from its length,
// role and age.
func (s *RelevanceScorer) ScoreConversationEntry(entry *types.ConversationEntry) float64 {
	score := 0.5

	n := len(entry.Content)
	if n > 100 {
		score += 0.2
	}
	if n > 500 {
		score += 0.2
	}

	if entry.Role == types.RoleAssistant {
		score += 0.1
	}

	age := s.now().Sub(entry.Timestamp)
	if age < time.Hour {
		score += 0.2
	} else if age < 24*time.Hour {
		score += 0.1
	}

	return clamp01(score)
}

func (s *RelevanceScorer) scoreTasks(content *types.ContextContent) float64 {
	total := len(content.TaskHistory)
	if total == 0 {
		return 0.5
	}

	completed := 0
	for i := range content.TaskHistory {
		if content.TaskHistory[i].Status == types.TaskStatusCompleted {
			completed++
		}
	}

	return clamp01(float64(completed)/float64(total)*0.9 + 0.1)
}

// ScoreTaskEntry scores a single task from its status and age.
func (s *RelevanceScorer) ScoreTaskEntry(entry *types.TaskEntry) float64 {
	score := 0.5

	switch entry.Status {
	case types.TaskStatusCompleted:
		score += 0.3
	case types.TaskStatusInProgress:
		score += 0.1
	}

	age := s.now().Sub(entry.Timestamp)
	if age < 24*time.Hour {
		score += 0.2
	} else if age < 168*time.Hour {
		score += 0.1
	}

	return clamp01(score)
}

func (s *RelevanceScorer) scoreInsights(content *types.ContextContent) float64 {
	if len(content.Insights) == 0 {
		return 0.5
	}

	var sum float64
	for i := range content.Insights {
		sum += content.Insights[i].Confidence
	}
	return clamp01(sum / float64(len(content.Insights)))
}

// ScoreInsightEntry scores a single insight from its confidence.
func (s *RelevanceScorer) ScoreInsightEntry(entry *types.InsightEntry) float64 {
	return clamp01(entry.Confidence * 0.8)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
