package handler

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// statusCode はドメインエラーに対応する gRPC ステータスコードを返します。
func statusCode(err error) codes.Code {
	switch {
	case errors.IsAny(err, job.ErrInvalidArgument, job.ErrInvalidDateRange, job.ErrInvalidRating):
		return codes.InvalidArgument
	case errors.Is(err, job.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, job.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.IsAny(err, job.ErrForbidden, job.ErrInvalidCode):
		return codes.PermissionDenied
	case errors.IsAny(err, job.ErrInvalidTransition, job.ErrSalaryAlreadyClaimed):
		return codes.FailedPrecondition
	case errors.Is(err, job.ErrHeadcountExceeded):
		return codes.ResourceExhausted
	case errors.Is(err, job.ErrRemoteFailure):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	code := statusCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, job.UserMessage(err))
}
