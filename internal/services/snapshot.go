package services

import (
	"encoding/json"

	"lpgen/internal/artifact"
	"lpgen/internal/jobs"
)

// SnapshotObserver writes each job snapshot to status.json in the job's
// artifact scope, so a job directory always describes its own state.
func SnapshotObserver(store *artifact.Store, onErr func(jobID string, err error)) jobs.Observer {
	return func(job jobs.Job) {
		err := writeSnapshot(store, job)
		if err != nil && onErr != nil {
			onErr(job.ID, err)
		}
	}
}

func writeSnapshot(store *artifact.Store, job jobs.Job) error {
	scope, err := store.Open(job.ID)
	if err != nil {
		return err
	}
	// the result duplicates the artifacts next to it
	job.Result = nil
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	return scope.Write(artifact.SnapshotFile, data)
}
