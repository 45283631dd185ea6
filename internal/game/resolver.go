package game

// IsRoundComplete reports whether every registered player has answered the
// current question. A round with zero registered players is never complete.
func IsRoundComplete(s *Session) bool {
	return len(s.Players) > 0 && len(s.Answers) == len(s.Players)
}

// RoundWinners returns the handles whose recorded answer this round matches
// the current question's correct answer. An empty result is a valid outcome:
// nobody got it right.
func RoundWinners(s *Session) []string {
	current, err := s.CurrentQuestion()
	if err != nil {
		return nil
	}
	winners := make([]string, 0, len(s.Answers))
	for _, p := range s.Players {
		if answer, ok := s.Answers[p.Handle]; ok && answer == current.CorrectAnswer {
			winners = append(winners, p.Handle)
		}
	}
	return winners
}

// OverallWinners returns every handle tied at the maximum cumulative score.
// An empty score table yields an empty list, never an arbitrary default.
func OverallWinners(s *Session) []string {
	if len(s.Scores) == 0 {
		return []string{}
	}
	maxScore := 0
	first := true
	for _, score := range s.Scores {
		if first || score > maxScore {
			maxScore = score
			first = false
		}
	}
	winners := make([]string, 0, len(s.Scores))
	for _, p := range s.Players {
		if score, ok := s.Scores[p.Handle]; ok && score == maxScore {
			winners = append(winners, p.Handle)
		}
	}
	// Scores can outlive the roster after a forced re-register; keep any
	// scored handle that is no longer registered.
	for handle, score := range s.Scores {
		if score == maxScore && !s.HasPlayer(handle) {
			winners = append(winners, handle)
		}
	}
	return winners
}
