package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/result"
	"github.com/signalnine/crucible/internal/stage"
)

func TestCampaignMakeResultsOneRowPerDeclaredTest(t *testing.T) {
	c := &Campaign{Attempts: []stage.Attempt{
		newScriptedAttempt(infoFor("a"), nil),
		newScriptedAttempt([]stage.Info{
			{TestID: "b", Title: "stage b", ReportOn: false},
			{TestID: "c", Title: "stage c", ReportOn: true},
		}, nil),
	}}
	set := c.MakeResults()
	require.Len(t, set.Results, 3)
	assert.Equal(t, "a", set.Results[0].TestID)
	assert.Equal(t, "b", set.Results[1].TestID)
	assert.False(t, set.Results[1].ReportOn)
	assert.Equal(t, "c", set.Results[2].TestID)
	for _, row := range set.Results {
		assert.Zero(t, row.Attempts)
		assert.Zero(t, row.OldFailures)
		assert.Zero(t, row.NewFailures)
	}
}

func TestCampaignRepeatsUntilLastRowHitsAttemptTarget(t *testing.T) {
	att := newScriptedAttempt(infoFor("a"), map[string]script{
		"old": passingScript("a"),
		"new": {steps: []stage.Step{prog("a"), term("a", false)}},
	})
	var built []cluster.Client
	c := &Campaign{
		Attempts: []stage.Attempt{att},
		OldPath:  "old",
		NewPath:  "new",
		NewClient: func(path string) cluster.Client {
			client := &stubClient{path: path}
			built = append(built, client)
			return client
		},
		AttemptCount: 2,
		MaxAttempts:  6,
	}
	set, err := c.RunTests(context.Background())
	require.NoError(t, err)
	row := set.Results[0]
	assert.Equal(t, 2, row.Attempts)
	assert.Equal(t, 0, row.OldFailures)
	assert.Equal(t, 2, row.NewFailures)
	// Two trials, each with a fresh pair of client handles.
	assert.Len(t, built, 4)
	assert.Equal(t, 2, att.startedFor("old"))
	assert.Equal(t, 2, att.startedFor("new"))
}

func TestCampaignStopsAtTrialBudget(t *testing.T) {
	// Every trial fail-fasts on the first stage, so the second row never
	// accumulates attempts and the budget is what ends the campaign.
	first := newScriptedAttempt(infoFor("a"), map[string]script{
		"old": {steps: []stage.Step{prog("a"), term("a", false)}},
		"new": passingScript("a"),
	})
	second := newScriptedAttempt(infoFor("b"), bothPassing("b"))
	c := &Campaign{
		Attempts:     []stage.Attempt{first, second},
		OldPath:      "old",
		NewPath:      "new",
		NewClient:    func(path string) cluster.Client { return &stubClient{path: path} },
		AttemptCount: 2,
		MaxAttempts:  5,
	}
	set, err := c.RunTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, first.startedFor("old"))
	// The first row stops accumulating once it reaches the target even
	// though trials keep running for the sake of later rows.
	assert.Equal(t, 2, set.Results[0].Attempts)
	assert.Equal(t, 2, set.Results[0].OldFailures)
	assert.Zero(t, set.Results[1].Attempts)
}

func TestCampaignSurfacesTrialErrorWithPartialResults(t *testing.T) {
	att := newScriptedAttempt(infoFor("a"), map[string]script{
		"old": {steps: []stage.Step{term("a", true)}},
		"new": passingScript("a"),
	})
	c := &Campaign{
		Attempts:     []stage.Attempt{att},
		OldPath:      "old",
		NewPath:      "new",
		NewClient:    func(path string) cluster.Client { return &stubClient{path: path} },
		AttemptCount: 1,
		MaxAttempts:  3,
	}
	set, err := c.RunTests(context.Background())
	require.Error(t, err)
	assert.True(t, IsViolation(err))
	require.NotNil(t, set)
	assert.Len(t, set.Results, 1)
}

func TestCampaignNoAttemptsYieldsEmptySet(t *testing.T) {
	c := &Campaign{AttemptCount: 1, MaxAttempts: 1}
	set, err := c.RunTests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set.Results)
}

func makeSet(ids ...string) *result.Set {
	set := &result.Set{}
	for _, id := range ids {
		set.Results = append(set.Results, &result.Row{TestID: id, Title: id, ReportOn: true})
	}
	return set
}

func TestUpdateResultsPairsPositionally(t *testing.T) {
	set := makeSet("a", "b", "c")
	comps := []Comparison{
		{TestID: "a", OldPassed: true, NewPassed: true},
		{TestID: "b", OldPassed: false, NewPassed: true},
	}
	require.NoError(t, UpdateResults(comps, set, 5))
	assert.Equal(t, 1, set.Results[0].Attempts)
	assert.Equal(t, 1, set.Results[1].Attempts)
	assert.Equal(t, 1, set.Results[1].OldFailures)
	// Row c got no comparison this trial and stays untouched.
	assert.Zero(t, set.Results[2].Attempts)
}

func TestUpdateResultsSkipsRowsAlreadyAtTarget(t *testing.T) {
	set := makeSet("a", "b")
	set.Results[0].Attempts = 2
	comps := []Comparison{
		{TestID: "a", OldPassed: false, NewPassed: false},
		{TestID: "b", OldPassed: true, NewPassed: true},
	}
	require.NoError(t, UpdateResults(comps, set, 2))
	assert.Equal(t, 2, set.Results[0].Attempts)
	assert.Zero(t, set.Results[0].OldFailures, "rows at target must not accumulate failures")
	assert.Equal(t, 1, set.Results[1].Attempts)
}

func TestUpdateResultsMismatchedIDIsViolation(t *testing.T) {
	set := makeSet("a")
	err := UpdateResults([]Comparison{{TestID: "z"}}, set, 1)
	require.Error(t, err)
	assert.True(t, IsViolation(err))
}

func TestUpdateResultsMoreComparisonsThanRows(t *testing.T) {
	set := makeSet("a")
	comps := []Comparison{
		{TestID: "a", OldPassed: true, NewPassed: true},
		{TestID: "b", OldPassed: true, NewPassed: true},
	}
	require.NoError(t, UpdateResults(comps, set, 5))
	assert.Equal(t, 1, set.Results[0].Attempts)
}
