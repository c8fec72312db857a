package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	pgdb "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/db/postgres"
)

const (
	uniqueViolationCode           = "23505"
	foreignKeyViolationCode       = "23503"
	checkViolationCode            = "23514"
	invalidTextRepresentationCode = "22P02"
)

const jobColumns = `j.id, j.title, j.type, j.employer_id, j.description, j.salary, j.insurance, j.uploaded_at,
               j.shift_start, j.shift_end, j.date_start, j.date_end, j.employee_required, j.categories,
               j.attendance_code, j.education, j.language, j.latitude, j.longitude, j.address,
               j.created_at, j.updated_at`

const employeeColumns = `e.id, e.job_id, e.person_id, e.state, e.salary_received, e.accepted_at, e.created_at, e.updated_at`

// JobRepository は PostgreSQL を利用した求人・従業員・出勤記録の永続化の実装です。
type JobRepository struct {
	pool pgdb.Queryer
}

var _ job.Repository = (*JobRepository)(nil)

// NewJobRepository は JobRepository を生成します。
func NewJobRepository(pool pgdb.Queryer) *JobRepository {
	return &JobRepository{pool: pool}
}

// CreateJob は求人を新規作成します。
func (r *JobRepository) CreateJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO jobs AS j (id, title, type, employer_id, description, salary, insurance, uploaded_at,
                               shift_start, shift_end, date_start, date_end, employee_required, categories,
                               attendance_code, education, language, latitude, longitude, address,
                               created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
        RETURNING `+jobColumns,
		j.ID,
		j.Title,
		string(j.Type),
		j.EmployerID,
		j.Description,
		j.Salary,
		j.Insurance,
		j.UploadedAt,
		j.ShiftStart.String(),
		j.ShiftEnd.String(),
		dateValue(j.DateStart),
		dateValue(j.DateEnd),
		j.EmployeeRequired,
		categoriesValue(j.Categories),
		j.AttendanceCode,
		j.Education,
		j.Language,
		j.Location.Lat,
		j.Location.Lon,
		j.Address,
		j.CreatedAt,
		j.UpdatedAt,
	)

	created, err := scanJob(row)
	if err != nil {
		return nil, translateJobPgError(err, "create job")
	}
	return created, nil
}

// FindJobByID は ID で求人を取得し、従業員一覧を付与します。
func (r *JobRepository) FindJobByID(ctx context.Context, id string) (*job.Job, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+jobColumns+`
          FROM jobs j
         WHERE j.id = $1
         LIMIT 1
    `, id)

	found, err := scanJob(row)
	if err != nil {
		return nil, translateJobPgError(err, "find job")
	}

	employees, err := r.listEmployees(ctx, `
        SELECT `+employeeColumns+`
          FROM job_employees e
         WHERE e.job_id = $1
         ORDER BY e.created_at, e.id
    `, id)
	if err != nil {
		return nil, err
	}
	found.Employees = employees
	return found, nil
}

// LockJob は求人行を FOR UPDATE でロックして取得します。トランザクション内で呼び出します。
func (r *JobRepository) LockJob(ctx context.Context, id string) (*job.Job, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+jobColumns+`
          FROM jobs j
         WHERE j.id = $1
         FOR UPDATE
    `, id)

	locked, err := scanJob(row)
	if err != nil {
		return nil, translateJobPgError(err, "lock job")
	}
	return locked, nil
}

// SearchJobs は条件に合う求人を取得します。
func (r *JobRepository) SearchJobs(ctx context.Context, filter job.SearchFilter) ([]*job.Job, error) {
	if filter.Limit <= 0 {
		return nil, errors.Wrap(job.ErrInvalidArgument, "limit must be positive")
	}

	args := make([]any, 0, 3)
	conditions := make([]string, 0, 2)

	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, "j.type = $"+strconv.Itoa(len(args)))
	}
	if filter.Category != "" {
		args = append(args, strings.ToLower(filter.Category))
		conditions = append(conditions, "$"+strconv.Itoa(len(args))+" = ANY(j.categories)")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := "j.uploaded_at DESC, j.id DESC"
	if filter.OrderBy == job.OrderSalaryDesc {
		orderClause = "j.salary DESC, j.uploaded_at DESC, j.id DESC"
	}

	args = append(args, filter.Limit)
	query := `
        SELECT ` + jobColumns + `
          FROM jobs j` + whereClause + `
         ORDER BY ` + orderClause + `
         LIMIT $` + strconv.Itoa(len(args)) + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateJobPgError(err, "search jobs")
	}
	defer rows.Close()

	jobs := make([]*job.Job, 0, filter.Limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, translateJobPgError(err, "search jobs")
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, translateJobPgError(err, "search jobs")
	}
	return jobs, nil
}

// ListExpired は終了日が today より前で、ENDED でない従業員を持つ求人を返します。
// 各求人の Employees には ENDED でない従業員のみが入ります。
func (r *JobRepository) ListExpired(ctx context.Context, today time.Time) ([]*job.Job, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+jobColumns+`
          FROM jobs j
         WHERE j.date_end < $1
           AND EXISTS (
               SELECT 1 FROM job_employees e WHERE e.job_id = j.id AND e.state <> $2
           )
         ORDER BY j.date_end, j.id
         FOR UPDATE
    `, dateValue(today), string(job.StateEnded))
	if err != nil {
		return nil, translateJobPgError(err, "list expired jobs")
	}

	var (
		jobs []*job.Job
		ids  []string
		byID = make(map[string]*job.Job)
	)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, translateJobPgError(err, "list expired jobs")
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
		byID[j.ID] = j
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translateJobPgError(err, "list expired jobs")
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	employees, err := r.listEmployees(ctx, `
        SELECT `+employeeColumns+`
          FROM job_employees e
         WHERE e.job_id = ANY($1::uuid[]) AND e.state <> $2
         ORDER BY e.created_at, e.id
    `, ids, string(job.StateEnded))
	if err != nil {
		return nil, err
	}
	for _, e := range employees {
		if j, ok := byID[e.JobID]; ok {
			j.Employees = append(j.Employees, e)
		}
	}
	return jobs, nil
}

// UpdateAttendanceCode は出勤コードを置き換えます。
func (r *JobRepository) UpdateAttendanceCode(ctx context.Context, jobID, code string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE jobs
           SET attendance_code = $1,
               updated_at = $2
         WHERE id = $3
    `, code, updatedAt, jobID)
	if err != nil {
		return translateJobPgError(err, "update attendance code")
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *JobRepository) listEmployees(ctx context.Context, query string, args ...any) ([]*job.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateJobPgError(err, "list employees")
	}
	defer rows.Close()

	employees := make([]*job.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, translateJobPgError(err, "list employees")
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateJobPgError(err, "list employees")
	}
	return employees, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		id               string
		title            string
		jobType          string
		employerID       string
		description      string
		salary           int64
		insurance        int64
		uploadedAt       time.Time
		shiftStart       string
		shiftEnd         string
		dateStart        time.Time
		dateEnd          time.Time
		employeeRequired int
		categories       []string
		attendanceCode   sql.NullString
		education        sql.NullString
		language         sql.NullString
		latitude         float64
		longitude        float64
		address          string
		createdAt        time.Time
		updatedAt        time.Time
	)

	if err := row.Scan(
		&id,
		&title,
		&jobType,
		&employerID,
		&description,
		&salary,
		&insurance,
		&uploadedAt,
		&shiftStart,
		&shiftEnd,
		&dateStart,
		&dateEnd,
		&employeeRequired,
		&categories,
		&attendanceCode,
		&education,
		&language,
		&latitude,
		&longitude,
		&address,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}

	parsedType, err := job.ParseType(jobType)
	if err != nil {
		return nil, errors.Wrapf(job.ErrSchema, "job %s: type %q", id, jobType)
	}
	start, err := attendance.ParseTimeOfDay(shiftStart)
	if err != nil {
		return nil, errors.Wrapf(job.ErrSchema, "job %s: shift_start %q", id, shiftStart)
	}
	end, err := attendance.ParseTimeOfDay(shiftEnd)
	if err != nil {
		return nil, errors.Wrapf(job.ErrSchema, "job %s: shift_end %q", id, shiftEnd)
	}
	if categories == nil {
		categories = []string{}
	}

	return &job.Job{
		ID:               id,
		Title:            title,
		Type:             parsedType,
		EmployerID:       employerID,
		Description:      description,
		Salary:           salary,
		Insurance:        insurance,
		UploadedAt:       uploadedAt,
		ShiftStart:       start,
		ShiftEnd:         end,
		DateStart:        attendance.Day(dateStart),
		DateEnd:          attendance.Day(dateEnd),
		EmployeeRequired: employeeRequired,
		Categories:       categories,
		AttendanceCode:   nullableString(attendanceCode),
		Education:        nullableString(education),
		Language:         nullableString(language),
		Location:         geo.Point{Lat: latitude, Lon: longitude},
		Address:          address,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateJobPgError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return job.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return errors.Wrap(job.ErrAlreadyExists, pgErr.ConstraintName)
		case foreignKeyViolationCode, invalidTextRepresentationCode:
			return errors.Wrap(job.ErrNotFound, op)
		case checkViolationCode:
			return errors.Wrap(job.ErrInvalidArgument, pgErr.ConstraintName)
		}
	}

	return job.MarkRemote(err, "postgres: "+op)
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func dateValue(t time.Time) time.Time {
	return attendance.Day(t)
}

func categoriesValue(categories []string) []string {
	if categories == nil {
		return []string{}
	}
	return categories
}
