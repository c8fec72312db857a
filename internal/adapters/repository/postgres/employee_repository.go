package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	pgdb "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/db/postgres"
)

var occupyingStates = []string{
	string(job.StateApplying),
	string(job.StateInviting),
	string(job.StatePresent),
	string(job.StateWorking),
}

// CountOccupying は募集枠を消費している従業員数を返します。
func (r *JobRepository) CountOccupying(ctx context.Context, jobID string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var count int
	if err := exec.QueryRow(ctx, `
        SELECT COUNT(*)
          FROM job_employees
         WHERE job_id = $1 AND state = ANY($2::text[])
    `, jobID, occupyingStates).Scan(&count); err != nil {
		return 0, translateJobPgError(err, "count employees")
	}
	return count, nil
}

// FindEmployee は求人 ID と人物 ID で関係を取得し、出勤記録を日付順で付与します。
func (r *JobRepository) FindEmployee(ctx context.Context, jobID, personID string) (*job.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM job_employees e
         WHERE e.job_id = $1 AND e.person_id = $2
         LIMIT 1
    `, jobID, personID)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateJobPgError(err, "find employee")
	}

	rows, err := exec.Query(ctx, `
        SELECT work_date, status
          FROM daily_attendances
         WHERE employee_id = $1
         ORDER BY work_date
    `, found.ID)
	if err != nil {
		return nil, translateJobPgError(err, "list attendance")
	}
	defer rows.Close()

	entries := make([]attendance.Daily, 0)
	for rows.Next() {
		entry, err := scanDaily(rows)
		if err != nil {
			return nil, translateJobPgError(err, "list attendance")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, translateJobPgError(err, "list attendance")
	}
	found.Attendance = entries
	return found, nil
}

// CreateEmployee は関係を新規作成します。
func (r *JobRepository) CreateEmployee(ctx context.Context, e *job.Employee) (*job.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO job_employees AS e (id, job_id, person_id, state, salary_received, accepted_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+employeeColumns,
		e.ID,
		e.JobID,
		e.PersonID,
		string(e.State),
		e.SalaryReceived,
		e.AcceptedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateJobPgError(err, "create employee")
	}
	return created, nil
}

// UpdateEmployee は状態・給与受取フラグ・承認時刻を更新します。出勤記録は変更しません。
func (r *JobRepository) UpdateEmployee(ctx context.Context, e *job.Employee) (*job.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE job_employees AS e
           SET state = $1,
               salary_received = $2,
               accepted_at = $3,
               updated_at = $4
         WHERE e.job_id = $5 AND e.person_id = $6
        RETURNING `+employeeColumns,
		string(e.State),
		e.SalaryReceived,
		e.AcceptedAt,
		e.UpdatedAt,
		e.JobID,
		e.PersonID,
	)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateJobPgError(err, "update employee")
	}
	updated.Attendance = e.Attendance
	return updated, nil
}

// DeleteEmployee は関係を削除します。出勤記録は外部キーによって連鎖削除されます。
func (r *JobRepository) DeleteEmployee(ctx context.Context, jobID, personID string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM job_employees WHERE job_id = $1 AND person_id = $2`, jobID, personID)
	if err != nil {
		return translateJobPgError(err, "delete employee")
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

// InsertAttendance は entries を 1 文でまとめて登録します。
func (r *JobRepository) InsertAttendance(ctx context.Context, employeeID string, entries []attendance.Daily) error {
	if len(entries) == 0 {
		return nil
	}

	dates := make([]time.Time, len(entries))
	statuses := make([]string, len(entries))
	for i, entry := range entries {
		dates[i] = dateValue(entry.Date)
		statuses[i] = string(entry.Status)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        INSERT INTO daily_attendances (employee_id, work_date, status)
        SELECT $1, t.work_date, t.status
          FROM unnest($2::date[], $3::text[]) AS t(work_date, status)
    `, employeeID, dates, statuses); err != nil {
		return translateJobPgError(err, "insert attendance")
	}
	return nil
}

// UpsertAttendance は (従業員, 日付) の出勤記録を作成または置き換えます。
func (r *JobRepository) UpsertAttendance(ctx context.Context, employeeID string, entry attendance.Daily) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        INSERT INTO daily_attendances (employee_id, work_date, status, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (employee_id, work_date)
        DO UPDATE SET status = EXCLUDED.status,
                      updated_at = EXCLUDED.updated_at
    `, employeeID, dateValue(entry.Date), string(entry.Status)); err != nil {
		return translateJobPgError(err, "upsert attendance")
	}
	return nil
}

// CreateRating は評価を登録します。同じ求人・評価者の組み合わせは 1 件のみです。
func (r *JobRepository) CreateRating(ctx context.Context, rating *job.Rating) (*job.Rating, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO ratings (id, job_id, job_name, rated_id, rater_id, stars, comment, rating_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, job_id, job_name, rated_id, rater_id, stars, comment, rating_date, created_at
    `,
		rating.ID,
		rating.JobID,
		rating.JobName,
		rating.RatedID,
		rating.RaterID,
		rating.Stars,
		rating.Comment,
		dateValue(rating.Date),
		rating.CreatedAt,
	)

	var (
		created job.Rating
		date    time.Time
	)
	if err := row.Scan(
		&created.ID,
		&created.JobID,
		&created.JobName,
		&created.RatedID,
		&created.RaterID,
		&created.Stars,
		&created.Comment,
		&date,
		&created.CreatedAt,
	); err != nil {
		return nil, translateJobPgError(err, "create rating")
	}
	created.Date = attendance.Day(date)
	return &created, nil
}

func scanEmployee(row pgx.Row) (*job.Employee, error) {
	var (
		id             string
		jobID          string
		personID       string
		state          string
		salaryReceived bool
		acceptedAt     *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(&id, &jobID, &personID, &state, &salaryReceived, &acceptedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}

	parsed, err := job.ParseState(state)
	if err != nil {
		return nil, errors.Wrapf(err, "employee %s: state %q", id, state)
	}

	return &job.Employee{
		ID:             id,
		JobID:          jobID,
		PersonID:       personID,
		State:          parsed,
		SalaryReceived: salaryReceived,
		AcceptedAt:     acceptedAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func scanDaily(row pgx.Row) (attendance.Daily, error) {
	var (
		date   time.Time
		status string
	)
	if err := row.Scan(&date, &status); err != nil {
		return attendance.Daily{}, err
	}
	parsed, err := attendance.ParseStatus(status)
	if err != nil {
		return attendance.Daily{}, errors.Mark(errors.Wrapf(err, "attendance status %q", status), job.ErrSchema)
	}
	return attendance.Daily{Date: attendance.Day(date), Status: parsed}, nil
}
