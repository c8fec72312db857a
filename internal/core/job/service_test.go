package job

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type stubCodes struct {
	codes []string
	next  int
}

func (s *stubCodes) NewCode(time.Time) (string, error) {
	if s.next >= len(s.codes) {
		return "", errors.New("no more codes")
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}

type recordingTx struct {
	readOnly  int
	readWrite int
}

func (r *recordingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	r.readOnly++
	return fn(ctx)
}

func (r *recordingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	r.readWrite++
	return fn(ctx)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

type fakePersons map[string]*Person

func (f fakePersons) FindPerson(_ context.Context, id string) (*Person, error) {
	p, ok := f[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

type fakeJobRepo struct {
	jobs       map[string]*Job
	employees  map[string]*Employee
	attendance map[string][]attendance.Daily
	ratings    []*Rating
	locks      int
	upserts    int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:       make(map[string]*Job),
		employees:  make(map[string]*Employee),
		attendance: make(map[string][]attendance.Daily),
	}
}

func employeeKey(jobID, personID string) string {
	return jobID + "/" + personID
}

func (r *fakeJobRepo) CreateJob(_ context.Context, j *Job) (*Job, error) {
	r.jobs[j.ID] = cloneJob(j)
	return cloneJob(j), nil
}

func (r *fakeJobRepo) FindJobByID(_ context.Context, id string) (*Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneJob(j)
	clone.Employees = r.employeesOf(id)
	return clone, nil
}

func (r *fakeJobRepo) LockJob(ctx context.Context, id string) (*Job, error) {
	r.locks++
	return r.FindJobByID(ctx, id)
}

func (r *fakeJobRepo) SearchJobs(_ context.Context, filter SearchFilter) ([]*Job, error) {
	var out []*Job
	for _, j := range r.jobs {
		if filter.Type != nil && j.Type != *filter.Type {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool {
		if filter.OrderBy == OrderSalaryDesc {
			return out[a].Salary > out[b].Salary
		}
		return out[a].UploadedAt.After(out[b].UploadedAt)
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeJobRepo) ListExpired(_ context.Context, today time.Time) ([]*Job, error) {
	var out []*Job
	for id, j := range r.jobs {
		if !j.DateEnd.Before(today) {
			continue
		}
		clone := cloneJob(j)
		for _, e := range r.employeesOf(id) {
			if e.State != StateEnded {
				clone.Employees = append(clone.Employees, e)
			}
		}
		if len(clone.Employees) > 0 {
			out = append(out, clone)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) UpdateAttendanceCode(_ context.Context, jobID, code string, updatedAt time.Time) error {
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.AttendanceCode = &code
	j.UpdatedAt = updatedAt
	return nil
}

func (r *fakeJobRepo) CountOccupying(_ context.Context, jobID string) (int, error) {
	count := 0
	for _, e := range r.employees {
		if e.JobID == jobID && e.State.Occupies() {
			count++
		}
	}
	return count, nil
}

func (r *fakeJobRepo) FindEmployee(_ context.Context, jobID, personID string) (*Employee, error) {
	e, ok := r.employees[employeeKey(jobID, personID)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *e
	clone.Attendance = append([]attendance.Daily(nil), r.attendance[e.ID]...)
	return &clone, nil
}

func (r *fakeJobRepo) CreateEmployee(_ context.Context, e *Employee) (*Employee, error) {
	key := employeeKey(e.JobID, e.PersonID)
	if _, ok := r.employees[key]; ok {
		return nil, ErrAlreadyExists
	}
	clone := *e
	clone.Attendance = nil
	r.employees[key] = &clone
	out := clone
	return &out, nil
}

func (r *fakeJobRepo) UpdateEmployee(_ context.Context, e *Employee) (*Employee, error) {
	key := employeeKey(e.JobID, e.PersonID)
	if _, ok := r.employees[key]; !ok {
		return nil, ErrNotFound
	}
	clone := *e
	clone.Attendance = nil
	r.employees[key] = &clone
	out := *e
	return &out, nil
}

func (r *fakeJobRepo) DeleteEmployee(_ context.Context, jobID, personID string) error {
	key := employeeKey(jobID, personID)
	e, ok := r.employees[key]
	if !ok {
		return ErrNotFound
	}
	delete(r.attendance, e.ID)
	delete(r.employees, key)
	return nil
}

func (r *fakeJobRepo) InsertAttendance(_ context.Context, employeeID string, entries []attendance.Daily) error {
	r.attendance[employeeID] = append(r.attendance[employeeID], entries...)
	return nil
}

func (r *fakeJobRepo) UpsertAttendance(_ context.Context, employeeID string, entry attendance.Daily) error {
	r.upserts++
	r.attendance[employeeID] = attendance.Upsert(r.attendance[employeeID], entry)
	return nil
}

func (r *fakeJobRepo) CreateRating(_ context.Context, rating *Rating) (*Rating, error) {
	for _, existing := range r.ratings {
		if existing.JobID == rating.JobID && existing.RaterID == rating.RaterID {
			return nil, ErrAlreadyExists
		}
	}
	clone := *rating
	r.ratings = append(r.ratings, &clone)
	out := clone
	return &out, nil
}

func (r *fakeJobRepo) employeesOf(jobID string) []*Employee {
	var out []*Employee
	for _, e := range r.employees {
		if e.JobID == jobID {
			clone := *e
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].PersonID < out[b].PersonID })
	return out
}

func cloneJob(j *Job) *Job {
	clone := *j
	clone.Employees = nil
	clone.Categories = append([]string(nil), j.Categories...)
	if j.AttendanceCode != nil {
		code := *j.AttendanceCode
		clone.AttendanceCode = &code
	}
	return &clone
}

type fixture struct {
	repo      *fakeJobRepo
	tx        *recordingTx
	clock     *stubClock
	publisher *recordingPublisher
	svc       *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	repo := newFakeJobRepo()
	persons := fakePersons{
		"employer-1": {ID: "employer-1", Name: "Shop", Role: RoleEmployer},
		"employer-2": {ID: "employer-2", Name: "Other", Role: RoleEmployer},
		"person-1":   {ID: "person-1", Name: "Taro", Role: RoleEmployee},
		"person-2":   {ID: "person-2", Name: "Hanako", Role: RoleEmployee},
		"person-3":   {ID: "person-3", Name: "Jiro", Role: RoleEmployee},
	}
	tx := &recordingTx{}
	clock := &stubClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}

	seq := 0
	base := []Option{
		WithPublisher(publisher),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	svc := NewService(repo, persons, clock, tx, append(base, opts...)...)
	return &fixture{repo: repo, tx: tx, clock: clock, publisher: publisher, svc: svc}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := attendance.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}

func (f *fixture) seedJob(t *testing.T, id string, required int) *Job {
	t.Helper()
	code := "code-initial"
	j := &Job{
		ID:               id,
		Title:            "Cafe staff",
		Type:             TypePartTime,
		EmployerID:       "employer-1",
		Salary:           1200,
		UploadedAt:       f.clock.now,
		ShiftStart:       attendance.TimeOfDay{Hour: 8},
		ShiftEnd:         attendance.TimeOfDay{Hour: 17},
		DateStart:        mustDate(t, "2025-05-10"),
		DateEnd:          mustDate(t, "2025-05-12"),
		EmployeeRequired: required,
		AttendanceCode:   &code,
	}
	f.repo.jobs[id] = j
	return j
}

func (f *fixture) seedEmployee(t *testing.T, jobID, personID string, state State) *Employee {
	t.Helper()
	e := &Employee{ID: "emp-" + personID, JobID: jobID, PersonID: personID, State: state}
	if state == StateWorking || state == StatePresent {
		accepted := f.clock.now
		e.AcceptedAt = &accepted
	}
	f.repo.employees[employeeKey(jobID, personID)] = e
	entries, err := attendance.GenerateRange(f.repo.jobs[jobID].DateStart, f.repo.jobs[jobID].DateEnd)
	if err != nil {
		t.Fatalf("GenerateRange: %v", err)
	}
	f.repo.attendance[e.ID] = entries
	return e
}

func TestService_Apply_CreatesApplyingWithAbsentRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	created, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  " person-1 ",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-10"),
		DateEnd:   mustDate(t, "2025-05-12"),
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if created.State != StateApplying {
		t.Fatalf("expected APPLYING, got %s", created.State)
	}
	if created.SalaryReceived {
		t.Fatalf("expected salary not received")
	}

	stored := f.repo.attendance[created.ID]
	if len(stored) != 3 {
		t.Fatalf("expected 3 attendance rows, got %d", len(stored))
	}
	want := []string{"2025-05-10", "2025-05-11", "2025-05-12"}
	for i, d := range stored {
		if attendance.FormatDate(d.Date) != want[i] || d.Status != attendance.StatusAbsent {
			t.Fatalf("unexpected row %d: %s %s", i, attendance.FormatDate(d.Date), d.Status)
		}
	}

	if f.tx.readWrite != 1 || f.repo.locks != 1 {
		t.Fatalf("expected one read-write tx with job lock, got tx=%d locks=%d", f.tx.readWrite, f.repo.locks)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != EventEmployeeApplied {
		t.Fatalf("expected applied event, got %+v", f.publisher.events)
	}
}

func TestService_Apply_InvalidDateRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	_, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  "person-1",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-12"),
		DateEnd:   mustDate(t, "2025-05-10"),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if len(f.repo.employees) != 0 || f.tx.readWrite != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestService_Apply_OutsideJobDates(t *testing.T) {
	t.Parallel()

	cases := map[string][2]string{
		"far range":      {"2000-01-01", "2099-12-31"},
		"before start":   {"2025-05-09", "2025-05-10"},
		"after end":      {"2025-05-12", "2025-05-13"},
		"entirely later": {"2025-06-01", "2025-06-02"},
	}
	for name, dates := range cases {
		dates := dates
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.seedJob(t, "job-1", 2)

			_, err := f.svc.Apply(context.Background(), ApplyInput{
				PersonID:  "person-1",
				JobID:     "job-1",
				DateStart: mustDate(t, dates[0]),
				DateEnd:   mustDate(t, dates[1]),
			})
			if !errors.Is(err, ErrInvalidDateRange) {
				t.Fatalf("expected ErrInvalidDateRange, got %v", err)
			}
			if len(f.repo.employees) != 0 || len(f.repo.attendance) != 0 {
				t.Fatalf("expected no writes, got %d employees", len(f.repo.employees))
			}
		})
	}
}

func TestService_Apply_HeadcountExceeded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 1)
	f.seedEmployee(t, "job-1", "person-2", StateWorking)

	_, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  "person-1",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-10"),
		DateEnd:   mustDate(t, "2025-05-10"),
	})
	if !errors.Is(err, ErrHeadcountExceeded) {
		t.Fatalf("expected ErrHeadcountExceeded, got %v", err)
	}
	if UserMessage(err) == "" {
		t.Fatalf("expected user message for headcount error")
	}
}

func TestService_Apply_DeniedDoesNotOccupy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 1)
	f.seedEmployee(t, "job-1", "person-2", StateDenied)

	if _, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  "person-1",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-10"),
		DateEnd:   mustDate(t, "2025-05-10"),
	}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
}

func TestService_Apply_Duplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 5)
	f.seedEmployee(t, "job-1", "person-1", StateApplying)

	_, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  "person-1",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-10"),
		DateEnd:   mustDate(t, "2025-05-11"),
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestService_Apply_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 5)

	in := ApplyInput{JobID: "job-1", PersonID: "ghost", DateStart: mustDate(t, "2025-05-10"), DateEnd: mustDate(t, "2025-05-10")}
	if _, err := f.svc.Apply(context.Background(), in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown person, got %v", err)
	}

	in.PersonID, in.JobID = "person-1", "missing"
	if _, err := f.svc.Apply(context.Background(), in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
	}
}

func TestService_Invite_NewRelation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	invited, err := f.svc.Invite(context.Background(), InviteInput{EmployerID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if invited.State != StateInviting || invited.SalaryReceived {
		t.Fatalf("unexpected invited relation: %+v", invited)
	}
	if got := len(f.repo.attendance[invited.ID]); got != 3 {
		t.Fatalf("expected attendance for the job range, got %d rows", got)
	}
}

func TestService_Invite_NotOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	_, err := f.svc.Invite(context.Background(), InviteInput{EmployerID: "employer-2", JobID: "job-1", PersonID: "person-1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Invite_OverwritesDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	e := f.seedEmployee(t, "job-1", "person-1", StateDenied)
	e.SalaryReceived = true
	accepted := f.clock.now
	e.AcceptedAt = &accepted

	invited, err := f.svc.Invite(context.Background(), InviteInput{EmployerID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if invited.State != StateInviting || invited.SalaryReceived || invited.Worked() {
		t.Fatalf("expected overwritten INVITING relation, got %+v", invited)
	}
	if got := len(f.repo.attendance[e.ID]); got != 3 {
		t.Fatalf("expected attendance to be kept, got %d rows", got)
	}
}

func TestService_Invite_RejectsWorking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	_, err := f.svc.Invite(context.Background(), InviteInput{EmployerID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_Accept(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 3)
	f.seedEmployee(t, "job-1", "person-1", StateApplying)
	f.seedEmployee(t, "job-1", "person-2", StateInviting)

	if _, err := f.svc.Accept(context.Background(), DecisionInput{ActorID: "person-1", JobID: "job-1", PersonID: "person-1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected applicant self-accept to be forbidden, got %v", err)
	}

	accepted, err := f.svc.Accept(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if accepted.State != StateWorking {
		t.Fatalf("expected WORKING, got %s", accepted.State)
	}
	if accepted.AcceptedAt == nil || !accepted.AcceptedAt.Equal(f.clock.now) {
		t.Fatalf("expected acceptance time to be recorded, got %v", accepted.AcceptedAt)
	}

	invitee, err := f.svc.Accept(context.Background(), DecisionInput{ActorID: "person-2", JobID: "job-1", PersonID: "person-2"})
	if err != nil {
		t.Fatalf("invitee Accept returned error: %v", err)
	}
	if invitee.State != StateWorking || !invitee.Worked() {
		t.Fatalf("expected accepted invitee WORKING, got %+v", invitee)
	}

	if _, err := f.svc.Accept(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second accept, got %v", err)
	}
}

func TestService_DenyKeepsRelation_RemoveDeletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 3)
	f.seedEmployee(t, "job-1", "person-1", StateApplying)
	f.seedEmployee(t, "job-1", "person-2", StateApplying)

	denied, err := f.svc.Deny(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if err != nil {
		t.Fatalf("Deny returned error: %v", err)
	}
	if denied.State != StateDenied {
		t.Fatalf("expected DENIED, got %s", denied.State)
	}
	if _, ok := f.repo.employees[employeeKey("job-1", "person-1")]; !ok {
		t.Fatalf("deny must keep the relation")
	}
	if _, err := f.svc.Deny(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition denying a terminal relation, got %v", err)
	}

	if err := f.svc.Remove(context.Background(), DecisionInput{ActorID: "person-2", JobID: "job-1", PersonID: "person-2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner removal, got %v", err)
	}
	if err := f.svc.Remove(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-2"}); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, ok := f.repo.employees[employeeKey("job-1", "person-2")]; ok {
		t.Fatalf("remove must delete the relation")
	}
	if _, ok := f.repo.attendance["emp-person-2"]; ok {
		t.Fatalf("remove must delete attendance rows")
	}
}

func TestService_MarkAttendance_PresentAndLate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		now  time.Time
		want attendance.Status
	}{
		{name: "before shift", now: time.Date(2025, 5, 10, 7, 59, 0, 0, time.UTC), want: attendance.StatusPresent},
		{name: "after shift", now: time.Date(2025, 5, 10, 8, 1, 0, 0, time.UTC), want: attendance.StatusLate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.seedJob(t, "job-1", 2)
			f.seedEmployee(t, "job-1", "person-1", StateWorking)

			result, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{
				PersonID: "person-1",
				JobID:    "job-1",
				Code:     "code-initial",
				Now:      tc.now,
			})
			if err != nil {
				t.Fatalf("MarkAttendance returned error: %v", err)
			}
			if result.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, result.Status)
			}
			if attendance.FormatDate(result.Date) != "2025-05-10" {
				t.Fatalf("unexpected date %s", attendance.FormatDate(result.Date))
			}
		})
	}
}

func TestService_MarkAttendance_IdempotentPerDay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	e := f.seedEmployee(t, "job-1", "person-1", StateWorking)

	for _, now := range []time.Time{
		time.Date(2025, 5, 11, 7, 30, 0, 0, time.UTC),
		time.Date(2025, 5, 11, 9, 0, 0, 0, time.UTC),
	} {
		if _, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{PersonID: "person-1", JobID: "job-1", Code: "code-initial", Now: now}); err != nil {
			t.Fatalf("MarkAttendance returned error: %v", err)
		}
	}

	rows := f.repo.attendance[e.ID]
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows after re-marking, got %d", len(rows))
	}
	count := 0
	for _, r := range rows {
		if attendance.FormatDate(r.Date) == "2025-05-11" {
			count++
			if r.Status != attendance.StatusLate {
				t.Fatalf("expected latest status LATE, got %s", r.Status)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for the day, got %d", count)
	}
}

func TestService_MarkAttendance_WrongCodeNoMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	for _, code := range []string{"wrong", "", "code-initial-x"} {
		_, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{
			PersonID: "person-1",
			JobID:    "job-1",
			Code:     code,
			Now:      time.Date(2025, 5, 10, 7, 0, 0, 0, time.UTC),
		})
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("code %q: expected ErrInvalidCode, got %v", code, err)
		}
	}
	if f.repo.upserts != 0 {
		t.Fatalf("expected no attendance mutation, got %d upserts", f.repo.upserts)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no events, got %+v", f.publisher.events)
	}
}

func TestService_MarkAttendance_NoCodeIssued(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	j := f.seedJob(t, "job-1", 2)
	j.AttendanceCode = nil
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	_, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{PersonID: "person-1", JobID: "job-1", Code: "anything"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestService_MarkAttendance_UsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	f := newFixture(t, WithLocation(tokyo))
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	// 2025-05-10 23:30 UTC は JST で 2025-05-11 08:30
	result, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{
		PersonID: "person-1",
		JobID:    "job-1",
		Code:     "code-initial",
		Now:      time.Date(2025, 5, 10, 23, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("MarkAttendance returned error: %v", err)
	}
	if attendance.FormatDate(result.Date) != "2025-05-11" || result.Status != attendance.StatusLate {
		t.Fatalf("unexpected result %s %s", attendance.FormatDate(result.Date), result.Status)
	}
}

func TestService_MarkAttendance_TerminalRelation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateDenied)

	_, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{PersonID: "person-1", JobID: "job-1", Code: "code-initial"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_RotateAttendanceCode_InvalidatesOldCode(t *testing.T) {
	t.Parallel()

	codes := &stubCodes{codes: []string{"Y", "X"}}
	f := newFixture(t, WithCodeGenerator(codes))
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	if _, err := f.svc.RotateAttendanceCode(context.Background(), "employer-2", "job-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	old, err := f.svc.RotateAttendanceCode(context.Background(), "employer-1", "job-1")
	if err != nil || old != "Y" {
		t.Fatalf("expected first code Y, got %q (%v)", old, err)
	}
	now := time.Date(2025, 5, 10, 7, 0, 0, 0, time.UTC)
	if _, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{PersonID: "person-1", JobID: "job-1", Code: "Y", Now: now}); err != nil {
		t.Fatalf("expected Y to be valid before rotation: %v", err)
	}

	code, err := f.svc.RotateAttendanceCode(context.Background(), "employer-1", "job-1")
	if err != nil || code != "X" {
		t.Fatalf("expected X, got %q (%v)", code, err)
	}

	if _, err := f.svc.MarkAttendance(context.Background(), MarkAttendanceInput{PersonID: "person-1", JobID: "job-1", Code: "Y", Now: now}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for rotated code, got %v", err)
	}

	current, err := f.svc.AttendanceCode(context.Background(), "employer-1", "job-1")
	if err != nil || current != "X" {
		t.Fatalf("expected current code X, got %q (%v)", current, err)
	}
}

func TestService_RotateAttendanceCode_DefaultGenerator(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	first, err := f.svc.RotateAttendanceCode(context.Background(), "employer-1", "job-1")
	if err != nil {
		t.Fatalf("RotateAttendanceCode returned error: %v", err)
	}
	second, err := f.svc.RotateAttendanceCode(context.Background(), "employer-1", "job-1")
	if err != nil {
		t.Fatalf("RotateAttendanceCode returned error: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("expected distinct non-empty codes, got %q and %q", first, second)
	}
}

func TestService_SweepExpired_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 5)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)
	f.seedEmployee(t, "job-1", "person-2", StateApplying)
	f.seedEmployee(t, "job-1", "person-3", StateEnded)

	now := time.Date(2025, 5, 13, 0, 30, 0, 0, time.UTC)
	first, err := f.svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(first))
	}
	for _, e := range f.repo.employees {
		if e.State != StateEnded {
			t.Fatalf("expected all ENDED, %s is %s", e.PersonID, e.State)
		}
	}

	second, err := f.svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("second SweepExpired returned error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no transitions on second sweep, got %d", len(second))
	}
}

func TestService_SweepExpired_LastDayIsNotExpired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 5)
	f.seedEmployee(t, "job-1", "person-1", StateWorking)

	transitions, err := f.svc.SweepExpired(context.Background(), time.Date(2025, 5, 12, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if len(transitions) != 0 {
		t.Fatalf("expected no transitions on the last day, got %d", len(transitions))
	}
}

func TestService_ClaimSalary(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	worker := f.seedEmployee(t, "job-1", "person-1", StateEnded)
	accepted := f.clock.now
	worker.AcceptedAt = &accepted
	f.seedEmployee(t, "job-1", "person-2", StateApplying)

	if _, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: "person-1", JobID: "job-1", Stars: 6}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}

	rating, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: "person-1", JobID: "job-1", Stars: 4, Comment: " good "})
	if err != nil {
		t.Fatalf("ClaimSalary returned error: %v", err)
	}
	if rating.RatedID != "employer-1" || rating.RaterID != "person-1" || rating.JobName != "Cafe staff" || rating.Comment != "good" {
		t.Fatalf("unexpected rating %+v", rating)
	}
	if !f.repo.employees[employeeKey("job-1", "person-1")].SalaryReceived {
		t.Fatalf("expected salary flag to be set")
	}

	if _, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: "person-1", JobID: "job-1", Stars: 5}); !errors.Is(err, ErrSalaryAlreadyClaimed) {
		t.Fatalf("expected ErrSalaryAlreadyClaimed, got %v", err)
	}
	if _, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: "person-2", JobID: "job-1", Stars: 5}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for applicant, got %v", err)
	}
	if len(f.repo.ratings) != 1 {
		t.Fatalf("expected a single rating, got %d", len(f.repo.ratings))
	}
}

func TestService_ClaimSalary_OnlyAfterAcceptedWork(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 5)
	f.seedEmployee(t, "job-1", "person-1", StateDenied)
	f.seedEmployee(t, "job-1", "person-2", StateApplying)
	f.seedEmployee(t, "job-1", "person-3", StateApplying)

	if _, err := f.svc.Accept(context.Background(), DecisionInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-3"}); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	f.clock.now = time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.SweepExpired(context.Background(), f.clock.now); err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	for _, e := range f.repo.employees {
		if e.State != StateEnded {
			t.Fatalf("expected all ENDED, %s is %s", e.PersonID, e.State)
		}
	}

	for _, personID := range []string{"person-1", "person-2"} {
		if _, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: personID, JobID: "job-1", Stars: 5}); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for %s, got %v", personID, err)
		}
		if f.repo.employees[employeeKey("job-1", personID)].SalaryReceived {
			t.Fatalf("salary flag must stay unset for %s", personID)
		}
	}
	if len(f.repo.ratings) != 0 {
		t.Fatalf("expected no ratings, got %d", len(f.repo.ratings))
	}

	if _, err := f.svc.ClaimSalary(context.Background(), ClaimSalaryInput{PersonID: "person-3", JobID: "job-1", Stars: 5}); err != nil {
		t.Fatalf("ClaimSalary for the hired worker returned error: %v", err)
	}
}

func TestService_GetAttendance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)
	e := f.seedEmployee(t, "job-1", "person-1", StateWorking)
	f.repo.attendance[e.ID][0].Status = attendance.StatusPresent
	f.repo.attendance[e.ID][1].Status = attendance.StatusLate

	report, err := f.svc.GetAttendance(context.Background(), GetAttendanceInput{ActorID: "employer-1", JobID: "job-1", PersonID: "person-1"})
	if err != nil {
		t.Fatalf("GetAttendance returned error: %v", err)
	}
	if report.Summary != (attendance.Summary{Present: 1, Late: 1, Absent: 1}) {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}

	if _, err := f.svc.GetAttendance(context.Background(), GetAttendanceInput{ActorID: "person-2", JobID: "job-1", PersonID: "person-1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other person, got %v", err)
	}
}

func TestService_CreateJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	created, err := f.svc.CreateJob(context.Background(), CreateJobInput{
		EmployerID:       "employer-1",
		Title:            "  Warehouse picker ",
		Type:             TypeFullTime,
		Salary:           2000,
		ShiftStart:       "09:00",
		ShiftEnd:         "18:00",
		DateStart:        mustDate(t, "2025-06-01"),
		DateEnd:          mustDate(t, "2025-06-30"),
		EmployeeRequired: 3,
		Categories:       []string{"Logistics", " logistics ", "", "night"},
	})
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if created.Title != "Warehouse picker" || created.ShiftStart.String() != "09:00" {
		t.Fatalf("unexpected job %+v", created)
	}
	if len(created.Categories) != 2 {
		t.Fatalf("expected deduplicated categories, got %v", created.Categories)
	}
	if !created.UploadedAt.Equal(f.clock.now) {
		t.Fatalf("expected upload time from clock")
	}

	bad := []CreateJobInput{
		{EmployerID: "employer-1", Type: TypeFullTime, ShiftStart: "09:00", ShiftEnd: "18:00", EmployeeRequired: 1},
		{EmployerID: "employer-1", Title: "x", Type: "CONTRACT", ShiftStart: "09:00", ShiftEnd: "18:00", EmployeeRequired: 1},
		{EmployerID: "employer-1", Title: "x", Type: TypeFullTime, ShiftStart: "9am", ShiftEnd: "18:00", EmployeeRequired: 1},
		{EmployerID: "employer-1", Title: "x", Type: TypeFullTime, ShiftStart: "09:00", ShiftEnd: "18:00", EmployeeRequired: 0},
	}
	for i, in := range bad {
		in.DateStart, in.DateEnd = mustDate(t, "2025-06-01"), mustDate(t, "2025-06-02")
		if _, err := f.svc.CreateJob(context.Background(), in); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}

	_, err = f.svc.CreateJob(context.Background(), CreateJobInput{
		EmployerID: "person-1", Title: "x", Type: TypeFullTime, ShiftStart: "09:00", ShiftEnd: "18:00",
		EmployeeRequired: 1, DateStart: mustDate(t, "2025-06-01"), DateEnd: mustDate(t, "2025-06-01"),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-employer, got %v", err)
	}
}

func TestService_SearchJobs_DistanceOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	near := f.seedJob(t, "near", 1)
	near.Location = geo.Point{Lat: 35.6896, Lon: 139.7006}
	far := f.seedJob(t, "far", 1)
	far.Location = geo.Point{Lat: 34.7025, Lon: 135.4959}
	f.seedJob(t, "unknown", 1)

	origin := geo.Point{Lat: 35.6812, Lon: 139.7671}
	jobs, err := f.svc.SearchJobs(context.Background(), SearchJobsInput{Origin: &origin, Order: OrderDistanceAsc})
	if err != nil {
		t.Fatalf("SearchJobs returned error: %v", err)
	}
	if len(jobs) != 3 || jobs[0].ID != "near" || jobs[1].ID != "far" || jobs[2].ID != "unknown" {
		t.Fatalf("unexpected order: %v", jobIDs(jobs))
	}

	within, err := f.svc.SearchJobs(context.Background(), SearchJobsInput{Origin: &origin, RadiusKm: 50, Limit: 10})
	if err != nil {
		t.Fatalf("SearchJobs returned error: %v", err)
	}
	if len(within) != 1 || within[0].ID != "near" {
		t.Fatalf("unexpected radius result: %v", jobIDs(within))
	}

	if _, err := f.svc.SearchJobs(context.Background(), SearchJobsInput{Order: OrderDistanceAsc}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without origin, got %v", err)
	}
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publisher.err = errors.New("redis down")
	f.seedJob(t, "job-1", 2)

	if _, err := f.svc.Apply(context.Background(), ApplyInput{
		PersonID:  "person-1",
		JobID:     "job-1",
		DateStart: mustDate(t, "2025-05-10"),
		DateEnd:   mustDate(t, "2025-05-10"),
	}); err != nil {
		t.Fatalf("Apply must succeed when publishing fails: %v", err)
	}
}

func TestService_Watch_NotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedJob(t, "job-1", 2)

	if _, err := f.svc.Watch(context.Background(), "employer-1", "job-1"); !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("expected ErrRemoteFailure, got %v", err)
	}
}

func jobIDs(jobs []*Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

type stubWatchSubscription struct {
	events chan Event
}

func (s *stubWatchSubscription) Events() <-chan Event { return s.events }

func (s *stubWatchSubscription) Close() error { return nil }

type recordingWatcher struct {
	jobIDs []string
}

func (w *recordingWatcher) Watch(_ context.Context, jobID string) (Subscription, error) {
	w.jobIDs = append(w.jobIDs, jobID)
	return &stubWatchSubscription{events: make(chan Event)}, nil
}

func TestService_Watch_RestrictedToParticipants(t *testing.T) {
	t.Parallel()

	watcher := &recordingWatcher{}
	f := newFixture(t, WithWatcher(watcher))
	f.seedJob(t, "job-1", 2)
	f.seedEmployee(t, "job-1", "person-1", StateApplying)

	for _, actor := range []string{"employer-1", "person-1"} {
		sub, err := f.svc.Watch(context.Background(), actor, " job-1 ")
		if err != nil {
			t.Fatalf("Watch for %s returned error: %v", actor, err)
		}
		_ = sub.Close()
	}

	for _, actor := range []string{"person-2", "employer-2"} {
		if _, err := f.svc.Watch(context.Background(), actor, "job-1"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden for %s, got %v", actor, err)
		}
	}
	if _, err := f.svc.Watch(context.Background(), " ", "job-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty actor, got %v", err)
	}

	if len(watcher.jobIDs) != 2 || watcher.jobIDs[0] != "job-1" {
		t.Fatalf("unexpected subscriptions %v", watcher.jobIDs)
	}
}
