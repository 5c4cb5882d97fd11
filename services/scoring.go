package services

import (
	"sort"

	"orchidaquiz/models"
)

const (
	basePoints     = 100
	maxSpeedBonus  = 50
	defaultTimeSec = 30
)

// calculatePoints returns the score for a single response. Incorrect
// answers score zero; correct answers earn a base value plus a bonus that
// decays linearly with elapsed/limit, so faster answers score higher.
// Integer arithmetic on stored millisecond values keeps replays exact.
func calculatePoints(isCorrect bool, elapsedMs, limitMs int64) int {
	if !isCorrect {
		return 0
	}
	if limitMs <= 0 {
		limitMs = defaultTimeSec * 1000
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > limitMs {
		elapsedMs = limitMs
	}
	bonus := maxSpeedBonus * (limitMs - elapsedMs) / limitMs
	return basePoints + int(bonus)
}

// selectionIsCorrect reports whether the chosen option ids exactly match
// the question's correct option set.
func selectionIsCorrect(question *models.Question, optionIDs []uint) bool {
	correct := make(map[uint]bool)
	for _, opt := range question.Options {
		if opt.IsCorrect {
			correct[opt.ID] = true
		}
	}
	if len(optionIDs) != len(correct) {
		return false
	}
	for _, id := range optionIDs {
		if !correct[id] {
			return false
		}
	}
	return true
}

type LeaderboardEntry struct {
	ParticipantID string `json:"participant_id"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// rankParticipants orders by score descending, then total response time
// ascending, then join order ascending. Join order is unique within a
// session, so the resulting order is total.
func rankParticipants(participants []*models.Participant) []LeaderboardEntry {
	sorted := make([]*models.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].TotalElapsedMs != sorted[j].TotalElapsedMs {
			return sorted[i].TotalElapsedMs < sorted[j].TotalElapsedMs
		}
		return sorted[i].JoinOrder < sorted[j].JoinOrder
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Score:         p.Score,
			Rank:          i + 1,
		}
	}
	return entries
}
