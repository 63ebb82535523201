package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgen/internal/jobs"
	"lpgen/internal/migrate"
	"lpgen/internal/model"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "mirror.db")
	require.NoError(t, migrate.Run("sqlite", dsn))

	s, err := Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(context.Background()))
	return s
}

func TestRebind(t *testing.T) {
	pg := &Store{}
	assert.Equal(t, "WHERE id = $1 AND x = $12", pg.rebind("WHERE id = $1 AND x = $12"))

	lite := &Store{sqlite: true}
	assert.Equal(t, "WHERE id = ? AND x = ? AND price = '$'", lite.rebind("WHERE id = $1 AND x = $12 AND price = '$'"))
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

	job := jobs.NewJob(model.Brief{ServiceName: "EasySpeak", CompanyName: "Absolute"}, "", now)
	require.NoError(t, s.UpsertJob(ctx, *job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Len(t, got.Steps, 5)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.OriginalRequest)
	assert.Equal(t, "EasySpeak", got.OriginalRequest.ServiceName)
	assert.True(t, now.Equal(got.CreatedAt))

	// progress through to completion and upsert again
	require.NoError(t, job.Start(now))
	for i := range job.Steps {
		require.NoError(t, job.BeginStep(i, now))
		require.NoError(t, job.CompleteStep(i, now))
	}
	require.NoError(t, job.Complete(model.Result{JobID: job.ID, HTML: "<html></html>", BundleSHA256: "abc"}, now.Add(time.Minute)))
	require.NoError(t, s.UpsertJob(ctx, *job))

	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, float64(100), got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, "<html></html>", got.Result.HTML)
	assert.Equal(t, "abc", got.Result.BundleSHA256)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, now.Add(time.Minute).Equal(*got.FinishedAt))
	for _, st := range got.Steps {
		assert.Equal(t, jobs.StatusCompleted, st.Status)
	}
}

func TestGetMissingAndDelete(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, "0194d3c2-0000-7000-8000-000000000000")
	assert.True(t, errors.Is(err, ErrNotFound))

	job := jobs.NewJob(model.Brief{ServiceName: "x"}, "", time.Now())
	require.NoError(t, s.UpsertJob(ctx, *job))
	require.NoError(t, s.DeleteJob(ctx, job.ID))
	_, err = s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteJob(ctx, job.ID))
}

func TestObserverMirrorsRegistryTransitions(t *testing.T) {
	s := openSQLite(t)
	var mirrorErr error
	reg := jobs.NewRegistry(s.Observer(time.Second, func(_ string, err error) { mirrorErr = err }))

	job := jobs.NewJob(model.Brief{ServiceName: "x"}, "", time.Now())
	require.NoError(t, reg.Add(job))
	_, err := reg.Update(job.ID, func(j *jobs.Job) error {
		if err := j.Start(time.Now()); err != nil {
			return err
		}
		return j.BeginStep(0, time.Now())
	})
	require.NoError(t, err)
	require.NoError(t, mirrorErr)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusProcessing, got.Status)
	assert.Equal(t, jobs.StepWireframe, got.CurrentStep)
	assert.Equal(t, float64(10), got.Progress)
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	assert.Error(t, migrate.Run("oracle", "whatever"))
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}
