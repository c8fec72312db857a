package job

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
)

// イベントストリーム上の求人スナップショットと通知の形式。
// 出勤コードは購読者に配信しないため含めない。

type jobDocument struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Type             string             `json:"type"`
	EmployerID       string             `json:"employerId"`
	Description      string             `json:"description"`
	Salary           *int64             `json:"salary"`
	Insurance        *int64             `json:"insurance"`
	UploadedAt       *time.Time         `json:"uploadedAt"`
	ShiftStart       string             `json:"shiftStart"`
	ShiftEnd         string             `json:"shiftEnd"`
	DateStart        string             `json:"dateStart"`
	DateEnd          string             `json:"dateEnd"`
	EmployeeRequired *int               `json:"employeeRequired"`
	Categories       []string           `json:"categories"`
	Education        *string            `json:"education,omitempty"`
	Language         *string            `json:"language,omitempty"`
	Latitude         float64            `json:"latitude"`
	Longitude        float64            `json:"longitude"`
	Address          string             `json:"address"`
	Employees        []employeeDocument `json:"employees"`
}

type employeeDocument struct {
	ID             string     `json:"id"`
	PersonID       string     `json:"personId"`
	State          string     `json:"state"`
	SalaryReceived bool       `json:"salaryReceived"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
}

type eventDocument struct {
	Type       string       `json:"type"`
	JobID      string       `json:"jobId"`
	PersonID   string       `json:"personId,omitempty"`
	State      string       `json:"state,omitempty"`
	Date       string       `json:"date,omitempty"`
	Status     string       `json:"status,omitempty"`
	Job        *jobDocument `json:"job,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// EncodeJob は求人スナップショットを JSON にします。
func EncodeJob(j *Job) ([]byte, error) {
	if j == nil {
		return nil, errors.Wrap(ErrSchema, "job is nil")
	}
	return json.Marshal(toJobDocument(j))
}

// DecodeJob は JSON の求人スナップショットを検証しながら解析します。
// 欠落・不正なフィールドは既定値で補わず ErrSchema を返します。
func DecodeJob(raw []byte) (*Job, error) {
	var doc jobDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, err
	}
	return doc.toJob()
}

// EncodeEvent は変更通知を JSON にします。
func EncodeEvent(ev Event) ([]byte, error) {
	doc := eventDocument{
		Type:       string(ev.Type),
		JobID:      ev.JobID,
		PersonID:   ev.PersonID,
		State:      string(ev.State),
		Status:     string(ev.Status),
		OccurredAt: ev.OccurredAt,
	}
	if ev.Date != nil {
		doc.Date = attendance.FormatDate(*ev.Date)
	}
	if ev.Job != nil {
		jd := toJobDocument(ev.Job)
		doc.Job = &jd
	}
	return json.Marshal(doc)
}

// DecodeEvent は JSON の変更通知を検証しながら解析します。
func DecodeEvent(raw []byte) (Event, error) {
	var doc eventDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return Event{}, err
	}

	ev := Event{
		Type:       EventType(doc.Type),
		JobID:      doc.JobID,
		PersonID:   doc.PersonID,
		OccurredAt: doc.OccurredAt,
	}
	switch ev.Type {
	case EventJobCreated, EventEmployeeApplied, EventEmployeeInvited, EventEmployeeUpdated,
		EventEmployeeRemoved, EventAttendance, EventCodeRotated, EventSalaryClaimed:
	default:
		return Event{}, schemaError("type")
	}
	if ev.JobID == "" {
		return Event{}, schemaError("jobId")
	}
	if doc.State != "" {
		st, err := ParseState(doc.State)
		if err != nil {
			return Event{}, schemaError("state")
		}
		ev.State = st
	}
	if doc.Date != "" {
		d, err := attendance.ParseDate(doc.Date)
		if err != nil {
			return Event{}, schemaError("date")
		}
		ev.Date = &d
	}
	if doc.Status != "" {
		st, err := attendance.ParseStatus(doc.Status)
		if err != nil {
			return Event{}, schemaError("status")
		}
		ev.Status = st
	}
	if doc.Job != nil {
		j, err := doc.Job.toJob()
		if err != nil {
			return Event{}, err
		}
		ev.Job = j
	}
	return ev, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode document"), ErrSchema)
	}
	return nil
}

func schemaError(field string) error {
	return errors.Wrapf(ErrSchema, "field %s", field)
}

func toJobDocument(j *Job) jobDocument {
	salary, insurance, required := j.Salary, j.Insurance, j.EmployeeRequired
	uploadedAt := j.UploadedAt
	doc := jobDocument{
		ID:               j.ID,
		Title:            j.Title,
		Type:             string(j.Type),
		EmployerID:       j.EmployerID,
		Description:      j.Description,
		Salary:           &salary,
		Insurance:        &insurance,
		UploadedAt:       &uploadedAt,
		ShiftStart:       j.ShiftStart.String(),
		ShiftEnd:         j.ShiftEnd.String(),
		DateStart:        attendance.FormatDate(j.DateStart),
		DateEnd:          attendance.FormatDate(j.DateEnd),
		EmployeeRequired: &required,
		Categories:       append([]string{}, j.Categories...),
		Education:        j.Education,
		Language:         j.Language,
		Latitude:         j.Location.Lat,
		Longitude:        j.Location.Lon,
		Address:          j.Address,
		Employees:        make([]employeeDocument, 0, len(j.Employees)),
	}
	for _, e := range j.Employees {
		doc.Employees = append(doc.Employees, employeeDocument{
			ID:             e.ID,
			PersonID:       e.PersonID,
			State:          string(e.State),
			SalaryReceived: e.SalaryReceived,
			AcceptedAt:     e.AcceptedAt,
		})
	}
	return doc
}

func (d jobDocument) toJob() (*Job, error) {
	if d.ID == "" {
		return nil, schemaError("id")
	}
	if d.Title == "" {
		return nil, schemaError("title")
	}
	jobType, err := ParseType(d.Type)
	if err != nil {
		return nil, schemaError("type")
	}
	if d.EmployerID == "" {
		return nil, schemaError("employerId")
	}
	if d.Salary == nil {
		return nil, schemaError("salary")
	}
	if d.Insurance == nil {
		return nil, schemaError("insurance")
	}
	if d.UploadedAt == nil {
		return nil, schemaError("uploadedAt")
	}
	shiftStart, err := attendance.ParseTimeOfDay(d.ShiftStart)
	if err != nil {
		return nil, schemaError("shiftStart")
	}
	shiftEnd, err := attendance.ParseTimeOfDay(d.ShiftEnd)
	if err != nil {
		return nil, schemaError("shiftEnd")
	}
	dateStart, err := attendance.ParseDate(d.DateStart)
	if err != nil {
		return nil, schemaError("dateStart")
	}
	dateEnd, err := attendance.ParseDate(d.DateEnd)
	if err != nil || dateEnd.Before(dateStart) {
		return nil, schemaError("dateEnd")
	}
	if d.EmployeeRequired == nil || *d.EmployeeRequired <= 0 {
		return nil, schemaError("employeeRequired")
	}
	if d.Categories == nil {
		return nil, schemaError("categories")
	}
	if d.Employees == nil {
		return nil, schemaError("employees")
	}

	j := &Job{
		ID:               d.ID,
		Title:            d.Title,
		Type:             jobType,
		EmployerID:       d.EmployerID,
		Description:      d.Description,
		Salary:           *d.Salary,
		Insurance:        *d.Insurance,
		UploadedAt:       *d.UploadedAt,
		ShiftStart:       shiftStart,
		ShiftEnd:         shiftEnd,
		DateStart:        dateStart,
		DateEnd:          dateEnd,
		EmployeeRequired: *d.EmployeeRequired,
		Categories:       d.Categories,
		Education:        d.Education,
		Language:         d.Language,
		Location:         geo.Point{Lat: d.Latitude, Lon: d.Longitude},
		Address:          d.Address,
		Employees:        make([]*Employee, 0, len(d.Employees)),
	}
	for _, ed := range d.Employees {
		if ed.ID == "" || ed.PersonID == "" {
			return nil, schemaError("employees.id")
		}
		st, err := ParseState(ed.State)
		if err != nil {
			return nil, schemaError("employees.state")
		}
		j.Employees = append(j.Employees, &Employee{
			ID:             ed.ID,
			JobID:          d.ID,
			PersonID:       ed.PersonID,
			State:          st,
			SalaryReceived: ed.SalaryReceived,
			AcceptedAt:     ed.AcceptedAt,
		})
	}
	return j, nil
}
