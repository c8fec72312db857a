package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	jobmarketv1 "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/grpc/api/jobmarket/v1"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/geo"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// JobGrpcHandler は JobLifecycleService の gRPC 実装です。
type JobGrpcHandler struct {
	svc    job.UseCase
	logger *zap.Logger
	jobmarketv1.UnimplementedJobLifecycleServiceServer
}

var _ jobmarketv1.JobLifecycleServiceServer = (*JobGrpcHandler)(nil)

// NewJobGrpcHandler は JobGrpcHandler を生成します。
func NewJobGrpcHandler(svc job.UseCase, logger *zap.Logger) *JobGrpcHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobGrpcHandler{svc: svc, logger: logger}
}

// CreateJob は求人を登録します。呼び出し元が雇用主になります。
func (h *JobGrpcHandler) CreateJob(ctx context.Context, req *jobmarketv1.CreateJobRequest) (*jobmarketv1.CreateJobResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	dateStart, err := parseDate("date_start", req.DateStart)
	if err != nil {
		return nil, err
	}
	dateEnd, err := parseDate("date_end", req.DateEnd)
	if err != nil {
		return nil, err
	}

	created, err := h.svc.CreateJob(ctx, job.CreateJobInput{
		EmployerID:       caller,
		Title:            req.Title,
		Type:             job.Type(strings.ToUpper(strings.TrimSpace(req.Type))),
		Description:      req.Description,
		Salary:           req.Salary,
		Insurance:        req.Insurance,
		ShiftStart:       req.ShiftStart,
		ShiftEnd:         req.ShiftEnd,
		DateStart:        dateStart,
		DateEnd:          dateEnd,
		EmployeeRequired: req.EmployeeRequired,
		Categories:       req.Categories,
		Education:        req.Education,
		Language:         req.Language,
		Location:         geo.Point{Lat: req.Latitude, Lon: req.Longitude},
		Address:          req.Address,
	})
	if err != nil {
		return nil, h.fail(ctx, "CreateJob", err)
	}
	return &jobmarketv1.CreateJobResponse{Job: toProtoJob(created)}, nil
}

// GetJob は求人を取得します。
func (h *JobGrpcHandler) GetJob(ctx context.Context, req *jobmarketv1.GetJobRequest) (*jobmarketv1.GetJobResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	found, err := h.svc.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, h.fail(ctx, "GetJob", err)
	}
	return &jobmarketv1.GetJobResponse{Job: toProtoJob(found)}, nil
}

// SearchJobs は求人を検索します。
func (h *JobGrpcHandler) SearchJobs(ctx context.Context, req *jobmarketv1.SearchJobsRequest) (*jobmarketv1.SearchJobsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	in := job.SearchJobsInput{
		Category: req.Category,
		RadiusKm: req.RadiusKm,
		Order:    job.SortOrder(strings.ToUpper(strings.TrimSpace(req.Order))),
		Limit:    req.Limit,
	}
	if t := strings.TrimSpace(req.Type); t != "" {
		jobType := job.Type(strings.ToUpper(t))
		in.Type = &jobType
	}
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		in.Origin = &geo.Point{Lat: *req.Latitude, Lon: *req.Longitude}
	case req.Latitude != nil || req.Longitude != nil:
		return nil, status.Error(codes.InvalidArgument, "latitude and longitude must be set together")
	}

	jobs, err := h.svc.SearchJobs(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "SearchJobs", err)
	}

	resp := &jobmarketv1.SearchJobsResponse{Jobs: make([]*jobmarketv1.Job, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toProtoJob(j))
	}
	return resp, nil
}

// ApplyJob は呼び出し元を求人に応募させます。
func (h *JobGrpcHandler) ApplyJob(ctx context.Context, req *jobmarketv1.ApplyJobRequest) (*jobmarketv1.ApplyJobResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	dateStart, err := parseDate("date_start", req.DateStart)
	if err != nil {
		return nil, err
	}
	dateEnd, err := parseDate("date_end", req.DateEnd)
	if err != nil {
		return nil, err
	}

	applied, err := h.svc.Apply(ctx, job.ApplyInput{
		PersonID:  caller,
		JobID:     req.JobID,
		DateStart: dateStart,
		DateEnd:   dateEnd,
	})
	if err != nil {
		return nil, h.fail(ctx, "ApplyJob", err)
	}
	return &jobmarketv1.ApplyJobResponse{Employee: toProtoEmployee(applied)}, nil
}

// InviteEmployee は呼び出し元の求人に人物を招待します。
func (h *JobGrpcHandler) InviteEmployee(ctx context.Context, req *jobmarketv1.InviteEmployeeRequest) (*jobmarketv1.InviteEmployeeResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	invited, err := h.svc.Invite(ctx, job.InviteInput{EmployerID: caller, JobID: req.JobID, PersonID: req.PersonID})
	if err != nil {
		return nil, h.fail(ctx, "InviteEmployee", err)
	}
	return &jobmarketv1.InviteEmployeeResponse{Employee: toProtoEmployee(invited)}, nil
}

// AcceptEmployee は応募・招待を承認します。
func (h *JobGrpcHandler) AcceptEmployee(ctx context.Context, req *jobmarketv1.DecisionRequest) (*jobmarketv1.DecisionResponse, error) {
	in, err := decisionInput(ctx, req)
	if err != nil {
		return nil, err
	}
	updated, err := h.svc.Accept(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "AcceptEmployee", err)
	}
	return &jobmarketv1.DecisionResponse{Employee: toProtoEmployee(updated)}, nil
}

// DenyEmployee は関係を DENIED にします。
func (h *JobGrpcHandler) DenyEmployee(ctx context.Context, req *jobmarketv1.DecisionRequest) (*jobmarketv1.DecisionResponse, error) {
	in, err := decisionInput(ctx, req)
	if err != nil {
		return nil, err
	}
	updated, err := h.svc.Deny(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "DenyEmployee", err)
	}
	return &jobmarketv1.DecisionResponse{Employee: toProtoEmployee(updated)}, nil
}

// RemoveEmployee は関係を削除します。
func (h *JobGrpcHandler) RemoveEmployee(ctx context.Context, req *jobmarketv1.DecisionRequest) (*jobmarketv1.DecisionResponse, error) {
	in, err := decisionInput(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Remove(ctx, in); err != nil {
		return nil, h.fail(ctx, "RemoveEmployee", err)
	}
	return &jobmarketv1.DecisionResponse{}, nil
}

// MarkAttendance は呼び出し元の本日の出勤を記録します。
func (h *JobGrpcHandler) MarkAttendance(ctx context.Context, req *jobmarketv1.MarkAttendanceRequest) (*jobmarketv1.MarkAttendanceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := h.svc.MarkAttendance(ctx, job.MarkAttendanceInput{PersonID: caller, JobID: req.JobID, Code: req.Code})
	if err != nil {
		return nil, h.fail(ctx, "MarkAttendance", err)
	}
	return toProtoAttendanceResult(result), nil
}

// RotateAttendanceCode は出勤コードを再発行します。
func (h *JobGrpcHandler) RotateAttendanceCode(ctx context.Context, req *jobmarketv1.RotateAttendanceCodeRequest) (*jobmarketv1.RotateAttendanceCodeResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	code, err := h.svc.RotateAttendanceCode(ctx, caller, req.JobID)
	if err != nil {
		return nil, h.fail(ctx, "RotateAttendanceCode", err)
	}
	return &jobmarketv1.RotateAttendanceCodeResponse{Code: code}, nil
}

// GetAttendance は出勤記録と集計を返します。PersonID が空の場合は呼び出し元の記録です。
func (h *JobGrpcHandler) GetAttendance(ctx context.Context, req *jobmarketv1.GetAttendanceRequest) (*jobmarketv1.GetAttendanceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	personID := req.PersonID
	if strings.TrimSpace(personID) == "" {
		personID = caller
	}

	report, err := h.svc.GetAttendance(ctx, job.GetAttendanceInput{ActorID: caller, JobID: req.JobID, PersonID: personID})
	if err != nil {
		return nil, h.fail(ctx, "GetAttendance", err)
	}
	return &jobmarketv1.GetAttendanceResponse{
		Employee: toProtoEmployee(report.Employee),
		Summary:  toProtoSummary(report.Summary),
	}, nil
}

// ClaimSalary は給与受取と雇用主の評価を登録します。
func (h *JobGrpcHandler) ClaimSalary(ctx context.Context, req *jobmarketv1.ClaimSalaryRequest) (*jobmarketv1.ClaimSalaryResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	rating, err := h.svc.ClaimSalary(ctx, job.ClaimSalaryInput{PersonID: caller, JobID: req.JobID, Stars: req.Stars, Comment: req.Comment})
	if err != nil {
		return nil, h.fail(ctx, "ClaimSalary", err)
	}
	return &jobmarketv1.ClaimSalaryResponse{Rating: toProtoRating(rating)}, nil
}

// WatchJob は求人の変更通知をクライアントが切断するまで配信します。
func (h *JobGrpcHandler) WatchJob(req *jobmarketv1.WatchJobRequest, stream grpc.ServerStreamingServer[jobmarketv1.JobEvent]) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	ctx := stream.Context()
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}

	sub, err := h.svc.Watch(ctx, caller, req.JobID)
	if err != nil {
		return h.fail(ctx, "WatchJob", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			h.logger.Warn("close subscription failed", zap.String("job_id", req.JobID), zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "event stream closed")
			}
			if err := stream.Send(toProtoEvent(ev)); err != nil {
				return err
			}
		}
	}
}

func (h *JobGrpcHandler) fail(ctx context.Context, method string, err error) error {
	st := toStatusError(err)
	if code := status.Code(st); code == codes.Internal || code == codes.Unavailable {
		fields := []zap.Field{zap.String("method", method), zap.Error(err)}
		if id, ok := auth.FromContext(ctx); ok {
			fields = append(fields, zap.String("caller_id", id.UserID))
		}
		h.logger.Error("request failed", fields...)
	}
	return st
}

func callerID(ctx context.Context) (string, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "authentication required")
	}
	return id.UserID, nil
}

func decisionInput(ctx context.Context, req *jobmarketv1.DecisionRequest) (job.DecisionInput, error) {
	if req == nil {
		return job.DecisionInput{}, status.Error(codes.InvalidArgument, "request is required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return job.DecisionInput{}, err
	}
	return job.DecisionInput{ActorID: caller, JobID: req.JobID, PersonID: req.PersonID}, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := attendance.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: invalid format, expected YYYY-MM-DD", field))
	}
	return t, nil
}

func toProtoJob(j *job.Job) *jobmarketv1.Job {
	if j == nil {
		return nil
	}

	out := &jobmarketv1.Job{
		ID:               j.ID,
		Title:            j.Title,
		Type:             string(j.Type),
		EmployerID:       j.EmployerID,
		Description:      j.Description,
		Salary:           j.Salary,
		Insurance:        j.Insurance,
		UploadedAt:       j.UploadedAt.UTC().Format(time.RFC3339),
		ShiftStart:       j.ShiftStart.String(),
		ShiftEnd:         j.ShiftEnd.String(),
		DateStart:        attendance.FormatDate(j.DateStart),
		DateEnd:          attendance.FormatDate(j.DateEnd),
		EmployeeRequired: j.EmployeeRequired,
		Categories:       append([]string{}, j.Categories...),
		Education:        j.Education,
		Language:         j.Language,
		Latitude:         j.Location.Lat,
		Longitude:        j.Location.Lon,
		Address:          j.Address,
		Employees:        make([]*jobmarketv1.Employee, 0, len(j.Employees)),
	}
	for _, e := range j.Employees {
		out.Employees = append(out.Employees, toProtoEmployee(e))
	}
	return out
}

func toProtoEmployee(e *job.Employee) *jobmarketv1.Employee {
	if e == nil {
		return nil
	}

	out := &jobmarketv1.Employee{
		ID:             e.ID,
		JobID:          e.JobID,
		PersonID:       e.PersonID,
		State:          string(e.State),
		SalaryReceived: e.SalaryReceived,
		AcceptedAt:     e.AcceptedAt,
	}
	for _, d := range e.Attendance {
		out.Attendance = append(out.Attendance, &jobmarketv1.DailyAttendance{
			Date:   attendance.FormatDate(d.Date),
			Status: string(d.Status),
		})
	}
	return out
}

func toProtoSummary(s attendance.Summary) jobmarketv1.AttendanceSummary {
	return jobmarketv1.AttendanceSummary{Present: s.Present, Late: s.Late, Absent: s.Absent}
}

func toProtoAttendanceResult(r *job.AttendanceResult) *jobmarketv1.MarkAttendanceResponse {
	return &jobmarketv1.MarkAttendanceResponse{
		JobID:    r.JobID,
		PersonID: r.PersonID,
		Date:     attendance.FormatDate(r.Date),
		Status:   string(r.Status),
	}
}

func toProtoRating(r *job.Rating) *jobmarketv1.Rating {
	if r == nil {
		return nil
	}
	return &jobmarketv1.Rating{
		ID:      r.ID,
		JobID:   r.JobID,
		JobName: r.JobName,
		RatedID: r.RatedID,
		RaterID: r.RaterID,
		Stars:   r.Stars,
		Comment: r.Comment,
		Date:    attendance.FormatDate(r.Date),
	}
}

func toProtoEvent(ev job.Event) *jobmarketv1.JobEvent {
	out := &jobmarketv1.JobEvent{
		Type:       string(ev.Type),
		JobID:      ev.JobID,
		PersonID:   ev.PersonID,
		State:      string(ev.State),
		Status:     string(ev.Status),
		Job:        toProtoJob(ev.Job),
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if ev.Date != nil {
		out.Date = attendance.FormatDate(*ev.Date)
	}
	return out
}
