package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

func TestNextStageWalksFullSequence(t *testing.T) {
	current := models.StageInitiation
	visited := []models.Stage{current}
	for {
		next, ok := NextStage(current)
		if !ok {
			break
		}
		visited = append(visited, next)
		current = next
	}
	require.Equal(t, models.StageSequence, visited)

	_, ok := NextStage(models.StageSiteInspection)
	require.False(t, ok, "terminal stage has no successor")
}

func TestReturnTargetsAsymmetry(t *testing.T) {
	cases := map[models.Stage][]models.Stage{
		models.StageInitiation:     nil,
		models.StageSchoolBoard:    {models.StageInitiation},
		models.StageDeanCommittee:  {models.StageSchoolBoard},
		models.StageSenate:         {models.StageDeanCommittee},
		models.StageQaReview:       {models.StageSchoolBoard},
		models.StageViceChancellor: {models.StageSchoolBoard},
		models.StageCueReview:      {models.StageSchoolBoard},
		models.StageSiteInspection: {models.StageCueReview},
	}
	for stage, expected := range cases {
		require.Equal(t, expected, ReturnTargets(stage), "targets for %s", stage)
	}
}

func TestIsValidReturn(t *testing.T) {
	require.True(t, IsValidReturn(models.StageQaReview, models.StageSchoolBoard))
	require.False(t, IsValidReturn(models.StageQaReview, models.StageSenate))
	require.False(t, IsValidReturn(models.StageQaReview, models.StageDeanCommittee))
	require.False(t, IsValidReturn(models.StageInitiation, models.StageInitiation))
}
