package job

import (
	"context"
	"time"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
)

// Repository は求人・従業員・出勤記録の永続化の抽象です。
type Repository interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	// FindJobByID は従業員一覧 (出勤記録なし) を含めて求人を返します。
	FindJobByID(ctx context.Context, id string) (*Job, error)
	// LockJob は同一トランザクション内で求人行をロックして返します。
	LockJob(ctx context.Context, id string) (*Job, error)
	SearchJobs(ctx context.Context, filter SearchFilter) ([]*Job, error)
	// ListExpired は dateEnd < today かつ ENDED でない従業員を持つ求人を返します。
	ListExpired(ctx context.Context, today time.Time) ([]*Job, error)
	UpdateAttendanceCode(ctx context.Context, jobID, code string, updatedAt time.Time) error

	CountOccupying(ctx context.Context, jobID string) (int, error)
	// FindEmployee は出勤記録を含めて関係を返します。
	FindEmployee(ctx context.Context, jobID, personID string) (*Employee, error)
	CreateEmployee(ctx context.Context, employee *Employee) (*Employee, error)
	UpdateEmployee(ctx context.Context, employee *Employee) (*Employee, error)
	DeleteEmployee(ctx context.Context, jobID, personID string) error

	// InsertAttendance は entries を 1 回の書き込みでまとめて登録します。
	InsertAttendance(ctx context.Context, employeeID string, entries []attendance.Daily) error
	UpsertAttendance(ctx context.Context, employeeID string, entry attendance.Daily) error

	CreateRating(ctx context.Context, rating *Rating) (*Rating, error)
}

// PersonDirectory は人物の存在確認を提供します。
type PersonDirectory interface {
	FindPerson(ctx context.Context, id string) (*Person, error)
}

// SortOrder は求人検索の並び順です。
type SortOrder string

const (
	OrderUploadedDesc SortOrder = "UPLOADED_DESC"
	OrderSalaryDesc   SortOrder = "SALARY_DESC"
	OrderDistanceAsc  SortOrder = "DISTANCE_ASC"
)

// SearchFilter は求人検索用フィルタです。
type SearchFilter struct {
	Type     *Type
	Category string
	// OrderBy は OrderUploadedDesc か OrderSalaryDesc のいずれかです。
	OrderBy SortOrder
	Limit   int
}

// EventType は購読者へ配信される変更の種類です。
type EventType string

const (
	EventJobCreated      EventType = "JOB_CREATED"
	EventEmployeeApplied EventType = "EMPLOYEE_APPLIED"
	EventEmployeeInvited EventType = "EMPLOYEE_INVITED"
	EventEmployeeUpdated EventType = "EMPLOYEE_UPDATED"
	EventEmployeeRemoved EventType = "EMPLOYEE_REMOVED"
	EventAttendance      EventType = "ATTENDANCE_MARKED"
	EventCodeRotated     EventType = "ATTENDANCE_CODE_ROTATED"
	EventSalaryClaimed   EventType = "SALARY_CLAIMED"
)

// Event は求人単位の変更通知です。
type Event struct {
	Type       EventType
	JobID      string
	PersonID   string
	State      State
	Date       *time.Time
	Status     attendance.Status
	Job        *Job
	OccurredAt time.Time
}

// Publisher は変更通知を発行します。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscription は Watch で得られる購読です。Close で必ず解放します。
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Watcher は求人単位の変更通知を購読します。
type Watcher interface {
	Watch(ctx context.Context, jobID string) (Subscription, error)
}
