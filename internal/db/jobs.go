package db

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// Job is a stored job definition
type Job struct {
	ID        string
	Name      string
	Schedule  string
	Process   string
	Command   string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromSpec builds an enabled stored job from a definition
func FromSpec(spec job.Spec) *Job {
	return &Job{
		Name:     spec.Name,
		Schedule: spec.Schedule,
		Process:  spec.Process,
		Command:  spec.Command,
		Enabled:  true,
	}
}

// Spec returns the definition handed to the scheduler
func (j Job) Spec() job.Spec {
	return job.Spec{
		Name:     j.Name,
		Schedule: j.Schedule,
		Process:  j.Process,
		Command:  j.Command,
	}
}

const jobColumns = `id, name, schedule, process, command, enabled, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.Name,
		&j.Schedule,
		&j.Process,
		&j.Command,
		&j.Enabled,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	return j, err
}

// =============================================================================
// Job Operations
// =============================================================================

// CreateJob inserts a new job. A missing ID is filled with a random UUID.
// Returns an error marked ErrDuplicate if the name is taken.
func (db *DB) CreateJob(j *Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, j.ID, j.Name, j.Schedule, j.Process, j.Command, j.Enabled, j.CreatedAt, j.UpdatedAt)
	if IsDuplicate(err) {
		return errors.Mark(errors.Wrapf(err, "job %q", j.Name), ErrDuplicate)
	}
	return errors.Wrapf(err, "create job %q", j.Name)
}

// UpsertJob inserts a job or replaces the definition of the job with the
// same name. The existing ID and creation time are kept.
func (db *DB) UpsertJob(j *Job) error {
	return db.WithTransaction(func(tx *Tx) error {
		return tx.upsertJob(j)
	})
}

// ImportSpecs upserts every definition in one transaction
func (db *DB) ImportSpecs(specs []job.Spec) error {
	return db.WithTransaction(func(tx *Tx) error {
		for _, spec := range specs {
			if err := tx.upsertJob(FromSpec(spec)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (tx *Tx) upsertJob(j *Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			schedule = excluded.schedule,
			process = excluded.process,
			command = excluded.command,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	if _, err := tx.Exec(query, j.ID, j.Name, j.Schedule, j.Process, j.Command, j.Enabled, now, now); err != nil {
		return errors.Wrapf(err, "upsert job %q", j.Name)
	}

	stored, err := scanJob(tx.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE name = ?`, j.Name))
	if err != nil {
		return errors.Wrapf(err, "reload job %q", j.Name)
	}
	*j = stored
	return nil
}

// GetJob retrieves a job by name
func (db *DB) GetJob(name string) (*Job, error) {
	j, err := scanJob(db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "job %q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get job %q", name)
	}
	return &j, nil
}

// GetAllJobs retrieves all jobs ordered by name
func (db *DB) GetAllJobs() ([]Job, error) {
	rows, err := db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}

	return jobs, nil
}

// EnabledSpecs returns the definitions of all enabled jobs ordered by name
func (db *DB) EnabledSpecs() ([]job.Spec, error) {
	jobs, err := db.GetAllJobs()
	if err != nil {
		return nil, err
	}

	specs := make([]job.Spec, 0, len(jobs))
	for _, j := range jobs {
		if j.Enabled {
			specs = append(specs, j.Spec())
		}
	}
	return specs, nil
}

// SetEnabled enables or disables a job by name
func (db *DB) SetEnabled(name string, enabled bool) error {
	result, err := db.Exec(`UPDATE jobs SET enabled = ?, updated_at = ? WHERE name = ?`,
		enabled, time.Now().UTC(), name)
	if err != nil {
		return errors.Wrapf(err, "update job %q", name)
	}
	return requireRow(result, name)
}

// DeleteJob deletes a job by name
func (db *DB) DeleteJob(name string) error {
	result, err := db.Exec(`DELETE FROM jobs WHERE name = ?`, name)
	if err != nil {
		return errors.Wrapf(err, "delete job %q", name)
	}
	return requireRow(result, name)
}

func requireRow(result sql.Result, name string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrapf(ErrNotFound, "job %q", name)
	}
	return nil
}
