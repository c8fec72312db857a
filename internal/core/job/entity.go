package job

import (
	"time"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
)

// Type は雇用形態です。
type Type string

const (
	TypeFullTime Type = "FULLTIME"
	TypePartTime Type = "PARTTIME"
)

// ParseType は文字列を Type に変換します。
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeFullTime, TypePartTime:
		return t, nil
	}
	return "", ErrInvalidArgument
}

// Job は求人エンティティです。
type Job struct {
	ID               string
	Title            string
	Type             Type
	EmployerID       string
	Description      string
	Salary           int64
	Insurance        int64
	UploadedAt       time.Time
	ShiftStart       attendance.TimeOfDay
	ShiftEnd         attendance.TimeOfDay
	DateStart        time.Time
	DateEnd          time.Time
	EmployeeRequired int
	Employees        []*Employee
	Categories       []string
	AttendanceCode   *string
	Education        *string
	Language         *string
	Location         geo.Point
	Address          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Employee は求人と人物の関係 (応募・招待・就業) を表します。
type Employee struct {
	ID             string
	JobID          string
	PersonID       string
	State          State
	Attendance     []attendance.Daily
	SalaryReceived bool
	// AcceptedAt は WORKING に承認された時刻です。承認されていない関係では nil です。
	AcceptedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Worked は関係が一度でも WORKING に承認されたかを返します。
func (e *Employee) Worked() bool {
	return e.AcceptedAt != nil
}

// Rating は給与受取時に作成される評価です。作成後は変更されません。
type Rating struct {
	ID        string
	JobID     string
	JobName   string
	RatedID   string
	RaterID   string
	Stars     int
	Comment   string
	Date      time.Time
	CreatedAt time.Time
}

// Role は人物の役割です。
type Role string

const (
	RoleEmployer Role = "EMPLOYER"
	RoleEmployee Role = "EMPLOYEE"
)

// Person は ID プロバイダが発行する人物の参照情報です。
type Person struct {
	ID   string
	Name string
	Role Role
}

// AttendanceResult は打刻結果です。
type AttendanceResult struct {
	JobID    string
	PersonID string
	Date     time.Time
	Status   attendance.Status
}

// AttendanceReport は関係ごとの出勤記録と集計です。
type AttendanceReport struct {
	Employee *Employee
	Summary  attendance.Summary
}

// Transition は期限切れ処理で発生した状態遷移です。
type Transition struct {
	JobID      string
	EmployeeID string
	PersonID   string
	From       State
	To         State
}

// FindEmployee は personID の関係を返します。
func (j *Job) FindEmployee(personID string) (*Employee, bool) {
	for _, e := range j.Employees {
		if e.PersonID == personID {
			return e, true
		}
	}
	return nil, false
}
