package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountSearchActivity(t *testing.T) {
	steps := testutil.ToFloat64(stepsTotal)
	solutions := testutil.ToFloat64(solutionsTotal)
	branches := testutil.ToFloat64(branchesTotal)
	forbids := testutil.ToFloat64(conflictsTotal.WithLabelValues(string(ConflictForbid)))
	demands := testutil.ToFloat64(conflictsTotal.WithLabelValues(string(ConflictDemand)))

	s := newSearch(t, demandForbidSrc)
	for range s.Solutions() {
	}
	stats := s.Stats()

	assert.Equal(t, float64(stats.Steps), testutil.ToFloat64(stepsTotal)-steps)
	assert.Equal(t, 1.0, testutil.ToFloat64(solutionsTotal)-solutions)
	assert.Equal(t, float64(stats.Branches), testutil.ToFloat64(branchesTotal)-branches)
	forbidDelta := testutil.ToFloat64(conflictsTotal.WithLabelValues(string(ConflictForbid))) - forbids
	demandDelta := testutil.ToFloat64(conflictsTotal.WithLabelValues(string(ConflictDemand))) - demands
	assert.Positive(t, forbidDelta)
	assert.Equal(t, 1.0, demandDelta, "only p a is ff with p b is tt saturates without meeting the demand")
	assert.Equal(t, float64(stats.Conflicts), forbidDelta+demandDelta)
}
