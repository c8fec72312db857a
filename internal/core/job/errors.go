package job

import (
	"github.com/cockroachdb/errors"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
)

var (
	// ErrInvalidDateRange は開始日・終了日が不正な場合に返却されます。
	ErrInvalidDateRange = attendance.ErrInvalidDateRange
	// ErrInvalidCode は出勤コードが一致しない場合に返却されます。
	ErrInvalidCode = errors.New("job: invalid attendance code")
	// ErrNotFound は求人・従業員・人物が存在しない場合に返却されます。
	ErrNotFound = errors.New("job: not found")
	// ErrRemoteFailure はストアへの到達や書き込みに失敗した場合の目印です。
	ErrRemoteFailure = errors.New("job: remote failure")
	// ErrSchema は保存済み・受信したドキュメントが形式に合わない場合に返却されます。
	ErrSchema = errors.New("job: schema error")
	// ErrInvalidTransition は状態機械が許可しない遷移に対して返却されます。
	ErrInvalidTransition = errors.New("job: invalid state transition")
	// ErrHeadcountExceeded は募集人数を超える応募・招待に対して返却されます。
	ErrHeadcountExceeded = errors.New("job: headcount exceeded")
	// ErrForbidden は求人の所有者以外による操作に対して返却されます。
	ErrForbidden = errors.New("job: forbidden")
	// ErrAlreadyExists は関係や評価が既に存在する場合に返却されます。
	ErrAlreadyExists = errors.New("job: already exists")
	// ErrSalaryAlreadyClaimed は給与受取済みの場合に返却されます。
	ErrSalaryAlreadyClaimed = errors.New("job: salary already claimed")
	ErrInvalidRating        = errors.New("job: invalid rating")
	ErrInvalidArgument      = errors.New("job: invalid argument")
)

// MarkRemote は err を ErrRemoteFailure として識別できるようにします。
// ドメインエラーはそのまま返します。
func MarkRemote(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err,
		ErrNotFound, ErrAlreadyExists, ErrSchema, ErrInvalidArgument,
		ErrInvalidDateRange, ErrInvalidCode, ErrInvalidTransition,
		ErrHeadcountExceeded, ErrForbidden, ErrSalaryAlreadyClaimed, ErrInvalidRating,
	) {
		return err
	}
	return errors.Mark(errors.Wrap(err, msg), ErrRemoteFailure)
}

// UserMessage は利用者向けの短いメッセージを返します。
func UserMessage(err error) string {
	if hint := errors.FlattenHints(err); hint != "" {
		return hint
	}
	switch {
	case errors.Is(err, ErrRemoteFailure):
		return "service temporarily unavailable, please try again"
	case errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}
