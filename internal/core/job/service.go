package job

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// CodeGenerator は出勤コードを発行します。
type CodeGenerator interface {
	NewCode(now time.Time) (string, error)
}

type ulidCodeGenerator struct{}

func (ulidCodeGenerator) NewCode(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", errors.Wrap(err, "job: generate attendance code")
	}
	return id.String(), nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
	// 距離順は取得後に並べ替えるため多めに読む
	distanceScanLimit = 500
)

// Service は求人ライフサイクルと出勤に関するユースケースをまとめます。
type Service struct {
	repo      Repository
	persons   PersonDirectory
	clock     Clock
	tx        TransactionManager
	publisher Publisher
	watcher   Watcher
	codes     CodeGenerator
	location  *time.Location
	logger    *zap.Logger
	newID     func() string
}

// UseCase は求人ユースケースの公開インターフェースです。
type UseCase interface {
	CreateJob(ctx context.Context, in CreateJobInput) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	SearchJobs(ctx context.Context, in SearchJobsInput) ([]*Job, error)
	Apply(ctx context.Context, in ApplyInput) (*Employee, error)
	Invite(ctx context.Context, in InviteInput) (*Employee, error)
	Accept(ctx context.Context, in DecisionInput) (*Employee, error)
	Deny(ctx context.Context, in DecisionInput) (*Employee, error)
	Remove(ctx context.Context, in DecisionInput) error
	MarkAttendance(ctx context.Context, in MarkAttendanceInput) (*AttendanceResult, error)
	RotateAttendanceCode(ctx context.Context, employerID, jobID string) (string, error)
	AttendanceCode(ctx context.Context, employerID, jobID string) (string, error)
	GetAttendance(ctx context.Context, in GetAttendanceInput) (*AttendanceReport, error)
	ClaimSalary(ctx context.Context, in ClaimSalaryInput) (*Rating, error)
	SweepExpired(ctx context.Context, now time.Time) ([]Transition, error)
	Watch(ctx context.Context, actorID, jobID string) (Subscription, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithPublisher は変更通知の発行先を設定します。
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWatcher は変更通知の購読元を設定します。
func WithWatcher(w Watcher) Option {
	return func(s *Service) { s.watcher = w }
}

// WithCodeGenerator は出勤コードの発行方法を差し替えます。
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.codes = g
		}
	}
}

// WithLocation は暦日判定とシフト時刻比較に使うタイムゾーンを設定します。
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator はエンティティ ID の採番方法を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, persons PersonDirectory, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:      repo,
		persons:   persons,
		clock:     clock,
		tx:        tx,
		publisher: noopPublisher{},
		codes:     ulidCodeGenerator{},
		location:  time.UTC,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJobInput は求人作成時の入力です。
type CreateJobInput struct {
	EmployerID       string
	Title            string
	Type             Type
	Description      string
	Salary           int64
	Insurance        int64
	ShiftStart       string
	ShiftEnd         string
	DateStart        time.Time
	DateEnd          time.Time
	EmployeeRequired int
	Categories       []string
	Education        *string
	Language         *string
	Location         geo.Point
	Address          string
}

// SearchJobsInput は求人検索時の入力です。
type SearchJobsInput struct {
	Type     *Type
	Category string
	Origin   *geo.Point
	RadiusKm float64
	Order    SortOrder
	Limit    int
}

// ApplyInput は応募時の入力です。
type ApplyInput struct {
	PersonID  string
	JobID     string
	DateStart time.Time
	DateEnd   time.Time
}

// InviteInput は招待時の入力です。
type InviteInput struct {
	EmployerID string
	JobID      string
	PersonID   string
}

// DecisionInput は承認・却下・削除時の入力です。ActorID は操作者です。
type DecisionInput struct {
	ActorID  string
	JobID    string
	PersonID string
}

// MarkAttendanceInput は QR 打刻時の入力です。
type MarkAttendanceInput struct {
	PersonID string
	JobID    string
	Code     string
	Now      time.Time
}

// GetAttendanceInput は出勤記録取得時の入力です。
type GetAttendanceInput struct {
	ActorID  string
	JobID    string
	PersonID string
}

// ClaimSalaryInput は給与受取と評価の入力です。
type ClaimSalaryInput struct {
	PersonID string
	JobID    string
	Stars    int
	Comment  string
}

// CreateJob は新しい求人を登録します。
func (s *Service) CreateJob(ctx context.Context, in CreateJobInput) (*Job, error) {
	employerID, err := normalizeID(in.EmployerID, "employer_id")
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "title is required")
	}
	jobType, err := ParseType(string(in.Type))
	if err != nil {
		return nil, errors.Wrapf(err, "type %q", in.Type)
	}
	if in.EmployeeRequired <= 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "employee_required must be positive")
	}
	if in.Salary < 0 || in.Insurance < 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "salary and insurance must not be negative")
	}
	shiftStart, err := attendance.ParseTimeOfDay(in.ShiftStart)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidArgument)
	}
	shiftEnd, err := attendance.ParseTimeOfDay(in.ShiftEnd)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidArgument)
	}
	if _, err := attendance.GenerateRange(in.DateStart, in.DateEnd); err != nil {
		return nil, err
	}

	var created *Job
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		employer, err := s.persons.FindPerson(txCtx, employerID)
		if err != nil {
			return err
		}
		if employer.Role != RoleEmployer {
			return errors.WithHint(ErrForbidden, "only employers can post jobs")
		}

		now := s.clock.Now()
		j := &Job{
			ID:               s.newID(),
			Title:            title,
			Type:             jobType,
			EmployerID:       employerID,
			Description:      strings.TrimSpace(in.Description),
			Salary:           in.Salary,
			Insurance:        in.Insurance,
			UploadedAt:       now,
			ShiftStart:       shiftStart,
			ShiftEnd:         shiftEnd,
			DateStart:        attendance.Day(in.DateStart),
			DateEnd:          attendance.Day(in.DateEnd),
			EmployeeRequired: in.EmployeeRequired,
			Categories:       normalizeCategories(in.Categories),
			Education:        trimOptional(in.Education),
			Language:         trimOptional(in.Language),
			Location:         in.Location,
			Address:          strings.TrimSpace(in.Address),
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		result, err := s.repo.CreateJob(txCtx, j)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, Event{Type: EventJobCreated, JobID: created.ID, Job: created})
	return created, nil
}

// GetJob は求人を従業員一覧とともに取得します。
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	jobID, err := normalizeID(id, "job_id")
	if err != nil {
		return nil, err
	}

	var found *Job
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		j, err := s.repo.FindJobByID(txCtx, jobID)
		if err != nil {
			return err
		}
		found = j
		return nil
	}); err != nil {
		return nil, err
	}
	return found, nil
}

// SearchJobs は条件に合う求人を指定の順で返します。
func (s *Service) SearchJobs(ctx context.Context, in SearchJobsInput) ([]*Job, error) {
	limit, err := normalizeLimit(in.Limit)
	if err != nil {
		return nil, err
	}

	order := in.Order
	if order == "" {
		order = OrderUploadedDesc
	}
	filter := SearchFilter{
		Type:     in.Type,
		Category: strings.TrimSpace(in.Category),
		OrderBy:  order,
		Limit:    limit,
	}

	switch order {
	case OrderUploadedDesc, OrderSalaryDesc:
	case OrderDistanceAsc:
		if in.Origin == nil {
			return nil, errors.Wrap(ErrInvalidArgument, "origin is required for distance ordering")
		}
		filter.OrderBy = OrderUploadedDesc
		filter.Limit = distanceScanLimit
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown order %q", order)
	}
	if in.Type != nil {
		if _, err := ParseType(string(*in.Type)); err != nil {
			return nil, err
		}
	}
	if in.RadiusKm > 0 {
		if in.Origin == nil {
			return nil, errors.Wrap(ErrInvalidArgument, "origin is required for radius filtering")
		}
		filter.Limit = distanceScanLimit
	}

	var jobs []*Job
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.SearchJobs(txCtx, filter)
		if err != nil {
			return err
		}
		jobs = found
		return nil
	}); err != nil {
		return nil, err
	}

	locate := func(j *Job) geo.Point { return j.Location }
	if in.RadiusKm > 0 {
		jobs = geo.WithinRadius(jobs, *in.Origin, in.RadiusKm, locate)
	}
	if order == OrderDistanceAsc {
		geo.SortByDistance(jobs, *in.Origin, locate)
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Apply は人物を求人に応募させ、期間中の出勤記録を欠勤で作成します。
// 募集人数の確認と書き込みは同一トランザクション内で行います。
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*Employee, error) {
	personID, err := normalizeID(in.PersonID, "person_id")
	if err != nil {
		return nil, err
	}
	jobID, err := normalizeID(in.JobID, "job_id")
	if err != nil {
		return nil, err
	}

	entries, err := attendance.GenerateRange(in.DateStart, in.DateEnd)
	if err != nil {
		return nil, errors.WithHint(err, "the start date must not be after the end date")
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.persons.FindPerson(txCtx, personID); err != nil {
			return err
		}

		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		if !withinJob(j, entries) {
			return errors.WithHint(
				errors.Wrapf(ErrInvalidDateRange, "outside job dates %s..%s",
					attendance.FormatDate(j.DateStart), attendance.FormatDate(j.DateEnd)),
				"the requested dates must fall within the job's dates",
			)
		}

		if _, err := s.repo.FindEmployee(txCtx, jobID, personID); err == nil {
			return errors.WithHint(ErrAlreadyExists, "you have already applied to this job")
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := s.ensureCapacity(txCtx, j); err != nil {
			return err
		}

		result, err := s.createEmployee(txCtx, jobID, personID, StateApplying, entries)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("employee applied",
		zap.String("job_id", jobID),
		zap.String("person_id", personID),
		zap.Int("days", len(entries)),
	)
	s.publish(ctx, Event{Type: EventEmployeeApplied, JobID: jobID, PersonID: personID, State: created.State})
	return created, nil
}

// Invite は雇用主が人物を求人に招待します。既存の関係は INVITING に上書きされます。
func (s *Service) Invite(ctx context.Context, in InviteInput) (*Employee, error) {
	employerID, err := normalizeID(in.EmployerID, "employer_id")
	if err != nil {
		return nil, err
	}
	jobID, err := normalizeID(in.JobID, "job_id")
	if err != nil {
		return nil, err
	}
	personID, err := normalizeID(in.PersonID, "person_id")
	if err != nil {
		return nil, err
	}

	var invited *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.persons.FindPerson(txCtx, personID); err != nil {
			return err
		}

		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != employerID {
			return ErrForbidden
		}

		existing, err := s.repo.FindEmployee(txCtx, jobID, personID)
		switch {
		case err == nil:
			next, ok := Next(existing.State, TriggerInvite)
			if !ok {
				return errors.Wrapf(ErrInvalidTransition, "invite from %s", existing.State)
			}
			if !existing.State.Occupies() {
				if err := s.ensureCapacity(txCtx, j); err != nil {
					return err
				}
			}
			existing.State = next
			existing.SalaryReceived = false
			existing.AcceptedAt = nil
			existing.UpdatedAt = s.clock.Now()
			result, err := s.repo.UpdateEmployee(txCtx, existing)
			if err != nil {
				return err
			}
			invited = result
			return nil
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}

		if err := s.ensureCapacity(txCtx, j); err != nil {
			return err
		}
		entries, err := attendance.GenerateRange(j.DateStart, j.DateEnd)
		if err != nil {
			return err
		}
		result, err := s.createEmployee(txCtx, jobID, personID, StateInviting, entries)
		if err != nil {
			return err
		}
		invited = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, Event{Type: EventEmployeeInvited, JobID: jobID, PersonID: personID, State: invited.State})
	return invited, nil
}

// Accept は応募・招待を承認し WORKING に遷移させます。
// 雇用主はどちらも承認でき、本人は招待のみ承認できます。
func (s *Service) Accept(ctx context.Context, in DecisionInput) (*Employee, error) {
	return s.transition(ctx, in, TriggerAccept, func(j *Job, e *Employee, actorID string) error {
		if actorID == j.EmployerID {
			return nil
		}
		if actorID == e.PersonID && e.State == StateInviting {
			return nil
		}
		return ErrForbidden
	})
}

// Deny は関係を DENIED に遷移させます。関係自体は残ります。
func (s *Service) Deny(ctx context.Context, in DecisionInput) (*Employee, error) {
	return s.transition(ctx, in, TriggerDeny, func(j *Job, e *Employee, actorID string) error {
		if actorID == j.EmployerID || actorID == e.PersonID {
			return nil
		}
		return ErrForbidden
	})
}

// Remove は関係と出勤記録を物理削除します。雇用主による管理操作です。
func (s *Service) Remove(ctx context.Context, in DecisionInput) error {
	actorID, jobID, personID, err := normalizeDecision(in)
	if err != nil {
		return err
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != actorID {
			return ErrForbidden
		}
		return s.repo.DeleteEmployee(txCtx, jobID, personID)
	}); err != nil {
		return err
	}

	s.logger.Info("employee removed", zap.String("job_id", jobID), zap.String("person_id", personID))
	s.publish(ctx, Event{Type: EventEmployeeRemoved, JobID: jobID, PersonID: personID})
	return nil
}

// MarkAttendance は QR コードを検証し、当日の出勤記録を作成または置き換えます。
func (s *Service) MarkAttendance(ctx context.Context, in MarkAttendanceInput) (*AttendanceResult, error) {
	personID, err := normalizeID(in.PersonID, "person_id")
	if err != nil {
		return nil, err
	}
	jobID, err := normalizeID(in.JobID, "job_id")
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, invalidCode()
	}

	now := in.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	local := now.In(s.location)

	var result *AttendanceResult
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		j, err := s.repo.FindJobByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.AttendanceCode == nil || subtle.ConstantTimeCompare([]byte(*j.AttendanceCode), []byte(code)) != 1 {
			return invalidCode()
		}

		e, err := s.repo.FindEmployee(txCtx, jobID, personID)
		if err != nil {
			return err
		}
		if e.State.IsTerminal() {
			return errors.Wrapf(ErrInvalidTransition, "mark attendance in state %s", e.State)
		}

		entry := attendance.Daily{
			Date:   attendance.Day(local),
			Status: attendance.StatusAt(local, j.ShiftStart),
		}
		if err := s.repo.UpsertAttendance(txCtx, e.ID, entry); err != nil {
			return err
		}

		result = &AttendanceResult{JobID: jobID, PersonID: personID, Date: entry.Date, Status: entry.Status}
		return nil
	}); err != nil {
		return nil, err
	}

	date := result.Date
	s.publish(ctx, Event{Type: EventAttendance, JobID: jobID, PersonID: personID, Date: &date, Status: result.Status})
	return result, nil
}

// RotateAttendanceCode は新しい出勤コードを発行し、旧コードを即座に無効にします。
func (s *Service) RotateAttendanceCode(ctx context.Context, employerID, jobID string) (string, error) {
	employerID, err := normalizeID(employerID, "employer_id")
	if err != nil {
		return "", err
	}
	jobID, err = normalizeID(jobID, "job_id")
	if err != nil {
		return "", err
	}

	var code string
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != employerID {
			return ErrForbidden
		}

		now := s.clock.Now()
		generated, err := s.codes.NewCode(now)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateAttendanceCode(txCtx, jobID, generated, now); err != nil {
			return err
		}
		code = generated
		return nil
	}); err != nil {
		return "", err
	}

	s.publish(ctx, Event{Type: EventCodeRotated, JobID: jobID})
	return code, nil
}

// AttendanceCode は QR 表示用に現在の出勤コードを返します。
func (s *Service) AttendanceCode(ctx context.Context, employerID, jobID string) (string, error) {
	employerID, err := normalizeID(employerID, "employer_id")
	if err != nil {
		return "", err
	}

	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if j.EmployerID != employerID {
		return "", ErrForbidden
	}
	if j.AttendanceCode == nil {
		return "", errors.WithHint(errors.Wrap(ErrNotFound, "attendance code"), "rotate the attendance code first")
	}
	return *j.AttendanceCode, nil
}

// GetAttendance は関係の出勤記録と集計を返します。雇用主と本人のみ参照できます。
func (s *Service) GetAttendance(ctx context.Context, in GetAttendanceInput) (*AttendanceReport, error) {
	actorID, jobID, personID, err := normalizeDecision(DecisionInput(in))
	if err != nil {
		return nil, err
	}

	var report *AttendanceReport
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		j, err := s.repo.FindJobByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if actorID != j.EmployerID && actorID != personID {
			return ErrForbidden
		}
		e, err := s.repo.FindEmployee(txCtx, jobID, personID)
		if err != nil {
			return err
		}
		report = &AttendanceReport{Employee: e, Summary: attendance.Summarize(e.Attendance)}
		return nil
	}); err != nil {
		return nil, err
	}
	return report, nil
}

// ClaimSalary は給与受取済みにし、雇用主への評価を 1 度だけ登録します。
func (s *Service) ClaimSalary(ctx context.Context, in ClaimSalaryInput) (*Rating, error) {
	personID, err := normalizeID(in.PersonID, "person_id")
	if err != nil {
		return nil, err
	}
	jobID, err := normalizeID(in.JobID, "job_id")
	if err != nil {
		return nil, err
	}
	if in.Stars < 1 || in.Stars > 5 {
		return nil, errors.WithHint(ErrInvalidRating, "rating must be between 1 and 5 stars")
	}

	var rating *Rating
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		e, err := s.repo.FindEmployee(txCtx, jobID, personID)
		if err != nil {
			return err
		}
		if e.SalaryReceived {
			return ErrSalaryAlreadyClaimed
		}
		if !e.Worked() || (e.State != StateWorking && e.State != StateEnded) {
			return errors.WithHint(
				errors.Wrapf(ErrInvalidTransition, "claim salary in state %s", e.State),
				"only hired workers can claim a salary",
			)
		}

		now := s.clock.Now()
		e.SalaryReceived = true
		e.UpdatedAt = now
		if _, err := s.repo.UpdateEmployee(txCtx, e); err != nil {
			return err
		}

		created, err := s.repo.CreateRating(txCtx, &Rating{
			ID:        s.newID(),
			JobID:     jobID,
			JobName:   j.Title,
			RatedID:   j.EmployerID,
			RaterID:   personID,
			Stars:     in.Stars,
			Comment:   strings.TrimSpace(in.Comment),
			Date:      attendance.Day(now.In(s.location)),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		rating = created
		return nil
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, Event{Type: EventSalaryClaimed, JobID: jobID, PersonID: personID})
	return rating, nil
}

// SweepExpired は終了日を過ぎた求人の従業員を ENDED にし、発生した遷移を返します。
func (s *Service) SweepExpired(ctx context.Context, now time.Time) ([]Transition, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	today := attendance.Day(now.In(s.location))

	var transitions []Transition
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		jobs, err := s.repo.ListExpired(txCtx, today)
		if err != nil {
			return err
		}

		transitions = EndExpiredJobs(jobs, today)
		updatedAt := s.clock.Now()
		for _, j := range jobs {
			for _, e := range j.Employees {
				if !changed(transitions, e.ID) {
					continue
				}
				e.UpdatedAt = updatedAt
				if _, err := s.repo.UpdateEmployee(txCtx, e); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("expired jobs swept",
		zap.String("today", attendance.FormatDate(today)),
		zap.Int("count", len(transitions)),
	)
	for _, tr := range transitions {
		s.publish(ctx, Event{Type: EventEmployeeUpdated, JobID: tr.JobID, PersonID: tr.PersonID, State: tr.To})
	}
	return transitions, nil
}

// Watch は求人の変更通知を購読します。雇用主と求人に関係を持つ人物のみ購読できます。
// 呼び出し側は Subscription.Close を必ず呼びます。
func (s *Service) Watch(ctx context.Context, actorID, jobID string) (Subscription, error) {
	actorID, err := normalizeID(actorID, "actor_id")
	if err != nil {
		return nil, err
	}
	if s.watcher == nil {
		return nil, errors.Mark(errors.New("job: watcher is not configured"), ErrRemoteFailure)
	}
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if actorID != j.EmployerID {
		if _, ok := j.FindEmployee(actorID); !ok {
			return nil, ErrForbidden
		}
	}
	return s.watcher.Watch(ctx, j.ID)
}

func (s *Service) transition(ctx context.Context, in DecisionInput, trigger Trigger, authorize func(*Job, *Employee, string) error) (*Employee, error) {
	actorID, jobID, personID, err := normalizeDecision(in)
	if err != nil {
		return nil, err
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		j, err := s.repo.LockJob(txCtx, jobID)
		if err != nil {
			return err
		}
		e, err := s.repo.FindEmployee(txCtx, jobID, personID)
		if err != nil {
			return err
		}
		if err := authorize(j, e, actorID); err != nil {
			return err
		}

		next, ok := Next(e.State, trigger)
		if !ok {
			return errors.Wrapf(ErrInvalidTransition, "%s from %s", trigger, e.State)
		}
		now := s.clock.Now()
		e.State = next
		e.UpdatedAt = now
		if next == StateWorking && e.AcceptedAt == nil {
			e.AcceptedAt = &now
		}

		result, err := s.repo.UpdateEmployee(txCtx, e)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("employee state changed",
		zap.String("job_id", jobID),
		zap.String("person_id", personID),
		zap.String("trigger", string(trigger)),
		zap.String("state", string(updated.State)),
	)
	s.publish(ctx, Event{Type: EventEmployeeUpdated, JobID: jobID, PersonID: personID, State: updated.State})
	return updated, nil
}

func (s *Service) ensureCapacity(ctx context.Context, j *Job) error {
	count, err := s.repo.CountOccupying(ctx, j.ID)
	if err != nil {
		return err
	}
	if count >= j.EmployeeRequired {
		return errors.WithHint(ErrHeadcountExceeded, "this job has no open positions left")
	}
	return nil
}

func (s *Service) createEmployee(ctx context.Context, jobID, personID string, state State, entries []attendance.Daily) (*Employee, error) {
	now := s.clock.Now()
	created, err := s.repo.CreateEmployee(ctx, &Employee{
		ID:        s.newID(),
		JobID:     jobID,
		PersonID:  personID,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertAttendance(ctx, created.ID, entries); err != nil {
		return nil, err
	}
	created.Attendance = entries
	return created, nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	ev.OccurredAt = s.clock.Now()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event", string(ev.Type)),
			zap.String("job_id", ev.JobID),
			zap.Error(err),
		)
	}
}

// withinJob は entries のすべての日付が求人の期間内にあるかを返します。
func withinJob(j *Job, entries []attendance.Daily) bool {
	if len(entries) == 0 {
		return false
	}
	first, last := entries[0].Date, entries[len(entries)-1].Date
	return !first.Before(attendance.Day(j.DateStart)) && !last.After(attendance.Day(j.DateEnd))
}

func changed(transitions []Transition, employeeID string) bool {
	for _, tr := range transitions {
		if tr.EmployeeID == employeeID {
			return true
		}
	}
	return false
}

func invalidCode() error {
	return errors.WithHint(ErrInvalidCode, "the QR code is not valid, scan the latest code")
}

func normalizeID(raw, field string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.Wrapf(ErrInvalidArgument, "%s is required", field)
	}
	return trimmed, nil
}

func normalizeDecision(in DecisionInput) (actorID, jobID, personID string, err error) {
	if actorID, err = normalizeID(in.ActorID, "actor_id"); err != nil {
		return "", "", "", err
	}
	if jobID, err = normalizeID(in.JobID, "job_id"); err != nil {
		return "", "", "", err
	}
	if personID, err = normalizeID(in.PersonID, "person_id"); err != nil {
		return "", "", "", err
	}
	return actorID, jobID, personID, nil
}

func normalizeLimit(limit int) (int, error) {
	if limit <= 0 {
		return defaultSearchLimit, nil
	}
	if limit > maxSearchLimit {
		return 0, errors.Wrapf(ErrInvalidArgument, "limit must be at most %d", maxSearchLimit)
	}
	return limit, nil
}

func normalizeCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
