// Package workflow implements the curriculum approval state machine.
// It is pure: no I/O, no clocks of its own, no shared state. Callers
// load a record, apply an action, and persist the result themselves.
package workflow

import "github.com/davmuu/curriculum-tracking-api/internal/models"

// returnTargets encodes the rollback rules. The asymmetry is a
// confirmed business rule: QA Review, CUE Review, and the Vice
// Chancellor stage can only return a curriculum all the way to the
// School Board, never to their immediate predecessor. Stages absent
// from this table fall back to one step backward.
var returnTargets = map[models.Stage][]models.Stage{
	models.StageInitiation:     nil,
	models.StageSchoolBoard:    {models.StageInitiation},
	models.StageDeanCommittee:  {models.StageSchoolBoard},
	models.StageSenate:         {models.StageDeanCommittee},
	models.StageQaReview:       {models.StageSchoolBoard},
	models.StageViceChancellor: {models.StageSchoolBoard},
	models.StageCueReview:      {models.StageSchoolBoard},
}

// NextStage returns the stage immediately following s, and false when
// s is terminal or unknown.
func NextStage(s models.Stage) (models.Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx >= len(models.StageSequence)-1 {
		return "", false
	}
	return models.StageSequence[idx+1], true
}

// PrevStage returns the stage immediately preceding s, and false when
// s is the first stage or unknown.
func PrevStage(s models.Stage) (models.Stage, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return models.StageSequence[idx-1], true
}

// ReturnTargets lists the stages a record at s may be returned to.
func ReturnTargets(s models.Stage) []models.Stage {
	if targets, ok := returnTargets[s]; ok {
		return append([]models.Stage(nil), targets...)
	}
	if prev, ok := PrevStage(s); ok {
		return []models.Stage{prev}
	}
	return nil
}

// IsValidReturn reports whether target is a legal return destination
// from stage s.
func IsValidReturn(s, target models.Stage) bool {
	for _, t := range ReturnTargets(s) {
		if t == target {
			return true
		}
	}
	return false
}
