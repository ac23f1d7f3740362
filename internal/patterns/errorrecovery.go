package patterns

import (
	"time"

	"github.com/d-o-hub/episodic-memory/internal/types"
	"github.com/google/uuid"
)

// ExtractErrorRecoveries finds an error step immediately followed by a
// success step and records the recovering step(s) as the pattern's
// recovery procedure. A recovery run extends as long as subsequent
// steps keep succeeding, capturing the full fix rather than just the
// first corrective action.
func ExtractErrorRecoveries(e *types.Episode) []*types.Pattern {
	var patterns []*types.Pattern

	for i := 0; i+1 < len(e.Steps); i++ {
		errStep := e.Steps[i]
		nextStep := e.Steps[i+1]
		if errStep.Result == nil || errStep.Result.Success || !nextStep.Result.IsSuccess() {
			continue
		}

		j := i + 1
		var recovery []string
		for j < len(e.Steps) && e.Steps[j].Result.IsSuccess() {
			recovery = append(recovery, e.Steps[j].Tool+": "+e.Steps[j].Action)
			j++
		}

		patterns = append(patterns, &types.Pattern{
			ID:            uuid.NewString(),
			Kind:          types.PatternErrorRecovery,
			ErrorType:     errStep.Result.Message,
			RecoverySteps: recovery,
			SuccessRate:   1.0,
			Context:       e.Context,
			SourceEpisode: e.EpisodeID,
			CreatedAt:     time.Now(),
		})

		i = j - 1
	}

	return patterns
}
