package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

func newImportFixture(maxRows int) (*ImportService, *fakeImportRunRepo, *engineFixture) {
	f := newEngineFixture()
	runs := newFakeImportRunRepo()
	svc := NewImportService(f.engine, runs, nil, jobs.QueueConfig{Workers: 1}, maxRows, nil)
	return svc, runs, f
}

func TestParseSnapshot(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	header, rows, err := svc.ParseSnapshot(strings.NewReader(
		"Code, Name ,PROGRAM\nS3003, Iris Chen ,MATH\nS4004,Ben Okafor,MATH\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"code", "name", "program"}, header)
	require.Len(t, rows, 2)
	require.Equal(t, "Iris Chen", rows[0]["name"])
	require.Equal(t, "S4004", rows[1]["code"])
}

func TestParseSnapshotEmptyStream(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	_, _, err := svc.ParseSnapshot(strings.NewReader(""))
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrFormat.Code))
}

func TestParseSnapshotMalformedRow(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	_, _, err := svc.ParseSnapshot(strings.NewReader("code,name\nT1001,Nadia,extra\n"))
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrFormat.Code))
}

func TestParseSnapshotRowLimit(t *testing.T) {
	svc, _, _ := newImportFixture(1)

	_, _, err := svc.ParseSnapshot(strings.NewReader("code,name\nT1001,A\nT1002,B\n"))
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrFormat.Code))
	require.Contains(t, appErrors.FromError(err).Message, "1 rows")
}

func TestRunSync(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	summary, err := svc.RunSync(context.Background(), personnelInput(
		map[string]string{"code": "T1001", "name": "Nadia Petrov", "program": "MATH"},
	))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
}

func TestEnqueueBeforeStartFailsRun(t *testing.T) {
	svc, runs, _ := newImportFixture(0)

	_, err := svc.Enqueue(context.Background(), personnelInput())
	require.Error(t, err)

	// The registered run was flipped to FAILED.
	require.Len(t, runs.runs, 1)
	for _, run := range runs.runs {
		require.Equal(t, models.ImportFailed, run.Status)
		require.NotNil(t, run.Error)
	}
}

func TestEnqueueProcessesRun(t *testing.T) {
	svc, _, f := newImportFixture(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	input := personnelInput(
		map[string]string{"code": "T1001", "name": "Nadia Petrov", "program": "MATH"},
	)
	input.Program = "MATH"
	run, err := svc.Enqueue(ctx, input)
	require.NoError(t, err)
	require.Equal(t, models.ImportPending, run.Status)
	require.NotNil(t, run.Program)

	require.Eventually(t, func() bool {
		got, err := svc.GetRun(ctx, run.ID)
		return err == nil && got.Status == models.ImportCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	var summary models.ImportSummary
	require.NoError(t, json.Unmarshal(got.Summary, &summary))
	require.Equal(t, 1, summary.Created)

	_, err = f.people.FindByCode(ctx, "T1001")
	require.NoError(t, err)
}

func TestEnqueueRecordsEngineFailure(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	// Missing required column fails the batch inside the worker.
	run, err := svc.Enqueue(ctx, ImportInput{
		Entity: models.ImportPersonnel,
		Header: []string{"code"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.GetRun(ctx, run.ID)
		return err == nil && got.Status == models.ImportFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, err := svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	require.Contains(t, *got.Error, "name")
}

func TestGetRunNotFound(t *testing.T) {
	svc, _, _ := newImportFixture(0)

	_, err := svc.GetRun(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
