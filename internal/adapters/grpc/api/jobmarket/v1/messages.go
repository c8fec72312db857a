// Package jobmarketv1 は jobmarket.v1.JobLifecycleService のメッセージとサービス定義です。
// メッセージは JSON コーデックで送受信します。
package jobmarketv1

import "time"

// Job は求人の表現です。出勤コードは含みません。
type Job struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Type             string      `json:"type"`
	EmployerID       string      `json:"employerId"`
	Description      string      `json:"description,omitempty"`
	Salary           int64       `json:"salary"`
	Insurance        int64       `json:"insurance"`
	UploadedAt       string      `json:"uploadedAt"`
	ShiftStart       string      `json:"shiftStart"`
	ShiftEnd         string      `json:"shiftEnd"`
	DateStart        string      `json:"dateStart"`
	DateEnd          string      `json:"dateEnd"`
	EmployeeRequired int         `json:"employeeRequired"`
	Categories       []string    `json:"categories"`
	Education        *string     `json:"education,omitempty"`
	Language         *string     `json:"language,omitempty"`
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	Address          string      `json:"address,omitempty"`
	Employees        []*Employee `json:"employees"`
}

// Employee は求人と人物の関係の表現です。
type Employee struct {
	ID             string             `json:"id"`
	JobID          string             `json:"jobId"`
	PersonID       string             `json:"personId"`
	State          string             `json:"state"`
	SalaryReceived bool               `json:"salaryReceived"`
	AcceptedAt     *time.Time         `json:"acceptedAt,omitempty"`
	Attendance     []*DailyAttendance `json:"attendance,omitempty"`
}

// DailyAttendance は 1 日分の出勤記録です。Date は yyyy-MM-dd です。
type DailyAttendance struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// AttendanceSummary は出勤記録の集計です。
type AttendanceSummary struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// Rating は給与受取時の評価です。
type Rating struct {
	ID      string `json:"id"`
	JobID   string `json:"jobId"`
	JobName string `json:"jobName"`
	RatedID string `json:"ratedId"`
	RaterID string `json:"raterId"`
	Stars   int    `json:"stars"`
	Comment string `json:"comment,omitempty"`
	Date    string `json:"date"`
}

type CreateJobRequest struct {
	Title            string   `json:"title"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	Salary           int64    `json:"salary"`
	Insurance        int64    `json:"insurance"`
	ShiftStart       string   `json:"shiftStart"`
	ShiftEnd         string   `json:"shiftEnd"`
	DateStart        string   `json:"dateStart"`
	DateEnd          string   `json:"dateEnd"`
	EmployeeRequired int      `json:"employeeRequired"`
	Categories       []string `json:"categories"`
	Education        *string  `json:"education,omitempty"`
	Language         *string  `json:"language,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Address          string   `json:"address"`
}

type CreateJobResponse struct {
	Job *Job `json:"job"`
}

type GetJobRequest struct {
	JobID string `json:"jobId"`
}

type GetJobResponse struct {
	Job *Job `json:"job"`
}

// SearchJobsRequest の Latitude/Longitude は距離順・半径指定の起点です。
type SearchJobsRequest struct {
	Type      string   `json:"type,omitempty"`
	Category  string   `json:"category,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  float64  `json:"radiusKm,omitempty"`
	Order     string   `json:"order,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

type SearchJobsResponse struct {
	Jobs []*Job `json:"jobs"`
}

type ApplyJobRequest struct {
	JobID     string `json:"jobId"`
	DateStart string `json:"dateStart"`
	DateEnd   string `json:"dateEnd"`
}

type ApplyJobResponse struct {
	Employee *Employee `json:"employee"`
}

type InviteEmployeeRequest struct {
	JobID    string `json:"jobId"`
	PersonID string `json:"personId"`
}

type InviteEmployeeResponse struct {
	Employee *Employee `json:"employee"`
}

// DecisionRequest は承認・却下・削除の対象です。
type DecisionRequest struct {
	JobID    string `json:"jobId"`
	PersonID string `json:"personId"`
}

type DecisionResponse struct {
	Employee *Employee `json:"employee,omitempty"`
}

type MarkAttendanceRequest struct {
	JobID string `json:"jobId"`
	Code  string `json:"code"`
}

type MarkAttendanceResponse struct {
	JobID    string `json:"jobId"`
	PersonID string `json:"personId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
}

type RotateAttendanceCodeRequest struct {
	JobID string `json:"jobId"`
}

type RotateAttendanceCodeResponse struct {
	Code string `json:"code"`
}

type GetAttendanceRequest struct {
	JobID    string `json:"jobId"`
	PersonID string `json:"personId"`
}

type GetAttendanceResponse struct {
	Employee *Employee         `json:"employee"`
	Summary  AttendanceSummary `json:"summary"`
}

type ClaimSalaryRequest struct {
	JobID   string `json:"jobId"`
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

type ClaimSalaryResponse struct {
	Rating *Rating `json:"rating"`
}

type WatchJobRequest struct {
	JobID string `json:"jobId"`
}

// JobEvent は WatchJob で配信される変更通知です。
type JobEvent struct {
	Type       string `json:"type"`
	JobID      string `json:"jobId"`
	PersonID   string `json:"personId,omitempty"`
	State      string `json:"state,omitempty"`
	Date       string `json:"date,omitempty"`
	Status     string `json:"status,omitempty"`
	Job        *Job   `json:"job,omitempty"`
	OccurredAt string `json:"occurredAt"`
}
