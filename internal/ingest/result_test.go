package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultObserve(t *testing.T) {
	var r Result
	r.Observe("countries", Outcome{Status: StatusLoaded, Records: 5})
	r.Observe("leagues", Outcome{Status: StatusNoData})
	r.Observe("teams", Outcome{Status: StatusSkipped, Err: errors.New("season_id is required")})
	r.Observe("players", Outcome{Status: StatusLoaded, Records: 2, Err: errors.New("upsert failed")})

	assert.Equal(t, 4, r.TasksRun)
	assert.Equal(t, 7, r.RecordsLoaded)
	assert.Equal(t, 1, r.NoData)
	assert.Equal(t, 1, r.Skipped)
	assert.Len(t, r.Errors, 2)
	assert.Equal(t, "tasks=4 records=7 no_data=1 skipped=1 errors=2", r.Summary())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loaded", StatusLoaded.String())
	assert.Equal(t, "no_data", StatusNoData.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "unknown", Status(99).String())
}
