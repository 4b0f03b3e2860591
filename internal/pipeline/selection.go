package pipeline

const (
	ReasonMatched  = "matched"
	ReasonFallback = "fallback"
)

// SelectWinner picks the best surviving candidate. Candidates whose shape
// count equals the original's are preferred outright: among them the lowest
// empty-space percentage wins, ties going to the lowest ordinal. Only when
// no candidate preserves the shape count does the comparison relax to the
// whole list, with the same ordering. The result does not depend on the
// order of the input slice.
//
// SelectWinner returns the winner's ordinal and "matched" or "fallback".
// An empty list returns (-1, ""); callers guard the all-failed case before
// selection.
func SelectWinner(originalShapeCount int, outcomes []CandidateOutcome) (int, string) {
	if len(outcomes) == 0 {
		return -1, ""
	}

	var winner *CandidateOutcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.Validation.ShapeCount != originalShapeCount {
			continue
		}
		if winner == nil || better(o, winner) {
			winner = o
		}
	}
	reason := ReasonMatched

	if winner == nil {
		reason = ReasonFallback
		for i := range outcomes {
			o := &outcomes[i]
			if winner == nil || better(o, winner) {
				winner = o
			}
		}
	}
	return winner.Ordinal, reason
}

func better(a, b *CandidateOutcome) bool {
	if a.Validation.EmptySpacePct != b.Validation.EmptySpacePct {
		return a.Validation.EmptySpacePct < b.Validation.EmptySpacePct
	}
	return a.Ordinal < b.Ordinal
}
