package jobmarketv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/grpc/codec"
)

// ServiceName は完全修飾サービス名です。
const ServiceName = "jobmarket.v1.JobLifecycleService"

const (
	CreateJobFullMethodName            = "/" + ServiceName + "/CreateJob"
	GetJobFullMethodName               = "/" + ServiceName + "/GetJob"
	SearchJobsFullMethodName           = "/" + ServiceName + "/SearchJobs"
	ApplyJobFullMethodName             = "/" + ServiceName + "/ApplyJob"
	InviteEmployeeFullMethodName       = "/" + ServiceName + "/InviteEmployee"
	AcceptEmployeeFullMethodName       = "/" + ServiceName + "/AcceptEmployee"
	DenyEmployeeFullMethodName         = "/" + ServiceName + "/DenyEmployee"
	RemoveEmployeeFullMethodName       = "/" + ServiceName + "/RemoveEmployee"
	MarkAttendanceFullMethodName       = "/" + ServiceName + "/MarkAttendance"
	RotateAttendanceCodeFullMethodName = "/" + ServiceName + "/RotateAttendanceCode"
	GetAttendanceFullMethodName        = "/" + ServiceName + "/GetAttendance"
	ClaimSalaryFullMethodName          = "/" + ServiceName + "/ClaimSalary"
	WatchJobFullMethodName             = "/" + ServiceName + "/WatchJob"
)

// JobLifecycleServiceServer はサーバー側の実装が満たすインターフェースです。
type JobLifecycleServiceServer interface {
	CreateJob(context.Context, *CreateJobRequest) (*CreateJobResponse, error)
	GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error)
	SearchJobs(context.Context, *SearchJobsRequest) (*SearchJobsResponse, error)
	ApplyJob(context.Context, *ApplyJobRequest) (*ApplyJobResponse, error)
	InviteEmployee(context.Context, *InviteEmployeeRequest) (*InviteEmployeeResponse, error)
	AcceptEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error)
	DenyEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error)
	RemoveEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error)
	MarkAttendance(context.Context, *MarkAttendanceRequest) (*MarkAttendanceResponse, error)
	RotateAttendanceCode(context.Context, *RotateAttendanceCodeRequest) (*RotateAttendanceCodeResponse, error)
	GetAttendance(context.Context, *GetAttendanceRequest) (*GetAttendanceResponse, error)
	ClaimSalary(context.Context, *ClaimSalaryRequest) (*ClaimSalaryResponse, error)
	WatchJob(*WatchJobRequest, grpc.ServerStreamingServer[JobEvent]) error
}

// UnimplementedJobLifecycleServiceServer は未実装のメソッドに Unimplemented を返します。
type UnimplementedJobLifecycleServiceServer struct{}

func (UnimplementedJobLifecycleServiceServer) CreateJob(context.Context, *CreateJobRequest) (*CreateJobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateJob not implemented")
}
func (UnimplementedJobLifecycleServiceServer) GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetJob not implemented")
}
func (UnimplementedJobLifecycleServiceServer) SearchJobs(context.Context, *SearchJobsRequest) (*SearchJobsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchJobs not implemented")
}
func (UnimplementedJobLifecycleServiceServer) ApplyJob(context.Context, *ApplyJobRequest) (*ApplyJobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ApplyJob not implemented")
}
func (UnimplementedJobLifecycleServiceServer) InviteEmployee(context.Context, *InviteEmployeeRequest) (*InviteEmployeeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method InviteEmployee not implemented")
}
func (UnimplementedJobLifecycleServiceServer) AcceptEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AcceptEmployee not implemented")
}
func (UnimplementedJobLifecycleServiceServer) DenyEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DenyEmployee not implemented")
}
func (UnimplementedJobLifecycleServiceServer) RemoveEmployee(context.Context, *DecisionRequest) (*DecisionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveEmployee not implemented")
}
func (UnimplementedJobLifecycleServiceServer) MarkAttendance(context.Context, *MarkAttendanceRequest) (*MarkAttendanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkAttendance not implemented")
}
func (UnimplementedJobLifecycleServiceServer) RotateAttendanceCode(context.Context, *RotateAttendanceCodeRequest) (*RotateAttendanceCodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RotateAttendanceCode not implemented")
}
func (UnimplementedJobLifecycleServiceServer) GetAttendance(context.Context, *GetAttendanceRequest) (*GetAttendanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAttendance not implemented")
}
func (UnimplementedJobLifecycleServiceServer) ClaimSalary(context.Context, *ClaimSalaryRequest) (*ClaimSalaryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClaimSalary not implemented")
}
func (UnimplementedJobLifecycleServiceServer) WatchJob(*WatchJobRequest, grpc.ServerStreamingServer[JobEvent]) error {
	return status.Error(codes.Unimplemented, "method WatchJob not implemented")
}

// RegisterJobLifecycleServiceServer は srv を s に登録します。
func RegisterJobLifecycleServiceServer(s grpc.ServiceRegistrar, srv JobLifecycleServiceServer) {
	s.RegisterService(&JobLifecycleService_ServiceDesc, srv)
}

func unaryHandler[Req, Res any](fullMethod string, call func(JobLifecycleServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JobLifecycleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(JobLifecycleServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchJobHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchJobRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(JobLifecycleServiceServer).WatchJob(in, &grpc.GenericServerStream[WatchJobRequest, JobEvent]{ServerStream: stream})
}

// JobLifecycleService_ServiceDesc は JobLifecycleService のサービス定義です。
var JobLifecycleService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobLifecycleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateJob", Handler: unaryHandler(CreateJobFullMethodName, JobLifecycleServiceServer.CreateJob)},
		{MethodName: "GetJob", Handler: unaryHandler(GetJobFullMethodName, JobLifecycleServiceServer.GetJob)},
		{MethodName: "SearchJobs", Handler: unaryHandler(SearchJobsFullMethodName, JobLifecycleServiceServer.SearchJobs)},
		{MethodName: "ApplyJob", Handler: unaryHandler(ApplyJobFullMethodName, JobLifecycleServiceServer.ApplyJob)},
		{MethodName: "InviteEmployee", Handler: unaryHandler(InviteEmployeeFullMethodName, JobLifecycleServiceServer.InviteEmployee)},
		{MethodName: "AcceptEmployee", Handler: unaryHandler(AcceptEmployeeFullMethodName, JobLifecycleServiceServer.AcceptEmployee)},
		{MethodName: "DenyEmployee", Handler: unaryHandler(DenyEmployeeFullMethodName, JobLifecycleServiceServer.DenyEmployee)},
		{MethodName: "RemoveEmployee", Handler: unaryHandler(RemoveEmployeeFullMethodName, JobLifecycleServiceServer.RemoveEmployee)},
		{MethodName: "MarkAttendance", Handler: unaryHandler(MarkAttendanceFullMethodName, JobLifecycleServiceServer.MarkAttendance)},
		{MethodName: "RotateAttendanceCode", Handler: unaryHandler(RotateAttendanceCodeFullMethodName, JobLifecycleServiceServer.RotateAttendanceCode)},
		{MethodName: "GetAttendance", Handler: unaryHandler(GetAttendanceFullMethodName, JobLifecycleServiceServer.GetAttendance)},
		{MethodName: "ClaimSalary", Handler: unaryHandler(ClaimSalaryFullMethodName, JobLifecycleServiceServer.ClaimSalary)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchJob", Handler: watchJobHandler, ServerStreams: true},
	},
	Metadata: "jobmarket/v1/job_lifecycle",
}

// JobLifecycleServiceClient は JobLifecycleService のクライアントです。
type JobLifecycleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewJobLifecycleServiceClient は JSON コーデックで呼び出すクライアントを生成します。
func NewJobLifecycleServiceClient(cc grpc.ClientConnInterface) *JobLifecycleServiceClient {
	return &JobLifecycleServiceClient{cc: cc}
}

func invoke[Res any](ctx context.Context, c *JobLifecycleServiceClient, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobLifecycleServiceClient) CreateJob(ctx context.Context, in *CreateJobRequest, opts ...grpc.CallOption) (*CreateJobResponse, error) {
	return invoke[CreateJobResponse](ctx, c, CreateJobFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) GetJob(ctx context.Context, in *GetJobRequest, opts ...grpc.CallOption) (*GetJobResponse, error) {
	return invoke[GetJobResponse](ctx, c, GetJobFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) SearchJobs(ctx context.Context, in *SearchJobsRequest, opts ...grpc.CallOption) (*SearchJobsResponse, error) {
	return invoke[SearchJobsResponse](ctx, c, SearchJobsFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) ApplyJob(ctx context.Context, in *ApplyJobRequest, opts ...grpc.CallOption) (*ApplyJobResponse, error) {
	return invoke[ApplyJobResponse](ctx, c, ApplyJobFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) InviteEmployee(ctx context.Context, in *InviteEmployeeRequest, opts ...grpc.CallOption) (*InviteEmployeeResponse, error) {
	return invoke[InviteEmployeeResponse](ctx, c, InviteEmployeeFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) AcceptEmployee(ctx context.Context, in *DecisionRequest, opts ...grpc.CallOption) (*DecisionResponse, error) {
	return invoke[DecisionResponse](ctx, c, AcceptEmployeeFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) DenyEmployee(ctx context.Context, in *DecisionRequest, opts ...grpc.CallOption) (*DecisionResponse, error) {
	return invoke[DecisionResponse](ctx, c, DenyEmployeeFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) RemoveEmployee(ctx context.Context, in *DecisionRequest, opts ...grpc.CallOption) (*DecisionResponse, error) {
	return invoke[DecisionResponse](ctx, c, RemoveEmployeeFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) MarkAttendance(ctx context.Context, in *MarkAttendanceRequest, opts ...grpc.CallOption) (*MarkAttendanceResponse, error) {
	return invoke[MarkAttendanceResponse](ctx, c, MarkAttendanceFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) RotateAttendanceCode(ctx context.Context, in *RotateAttendanceCodeRequest, opts ...grpc.CallOption) (*RotateAttendanceCodeResponse, error) {
	return invoke[RotateAttendanceCodeResponse](ctx, c, RotateAttendanceCodeFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) GetAttendance(ctx context.Context, in *GetAttendanceRequest, opts ...grpc.CallOption) (*GetAttendanceResponse, error) {
	return invoke[GetAttendanceResponse](ctx, c, GetAttendanceFullMethodName, in, opts)
}

func (c *JobLifecycleServiceClient) ClaimSalary(ctx context.Context, in *ClaimSalaryRequest, opts ...grpc.CallOption) (*ClaimSalaryResponse, error) {
	return invoke[ClaimSalaryResponse](ctx, c, ClaimSalaryFullMethodName, in, opts)
}

// WatchJob は求人の変更通知ストリームを開きます。
func (c *JobLifecycleServiceClient) WatchJob(ctx context.Context, in *WatchJobRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[JobEvent], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	stream, err := c.cc.NewStream(ctx, &JobLifecycleService_ServiceDesc.Streams[0], WatchJobFullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchJobRequest, JobEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
