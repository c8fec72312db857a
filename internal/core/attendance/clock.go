package attendance

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidTimeOfDay は HH:mm として解釈できない値に対して返却されます。
var ErrInvalidTimeOfDay = errors.New("attendance: invalid time of day")

// TimeOfDay はシフト開始・終了などの時刻 (分単位) です。
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay は HH:mm 形式の文字列を解析します。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, errors.Wrapf(ErrInvalidTimeOfDay, "%q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Of は t の時刻部分を分単位に切り捨てて返します。
func Of(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes は 0 時からの経過分を返します。
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// After は t が other より後の時刻かどうかを返します。
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.Minutes() > other.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// StatusAt は打刻時刻 now とシフト開始時刻から出勤状態を決めます。
// 開始時刻を過ぎていれば LATE、それ以外は PRESENT です。
func StatusAt(now time.Time, shiftStart TimeOfDay) Status {
	if Of(now).After(shiftStart) {
		return StatusLate
	}
	return StatusPresent
}
