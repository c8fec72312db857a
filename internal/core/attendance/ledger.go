// Package attendance は日次出勤記録の生成・検索・集計を扱います。
//
// 記録はすべて暦日単位で、日付は UTC の 0 時に正規化した time.Time で保持します。
package attendance

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// DateLayout は永続化・通信で用いる日付書式 (yyyy-MM-dd) です。
const DateLayout = "2006-01-02"

// ErrInvalidDateRange は開始日が終了日より後の場合などに返却されます。
var ErrInvalidDateRange = errors.New("attendance: invalid date range")

// Status は日次出勤の状態です。
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
)

// Daily は 1 日分の出勤記録です。
type Daily struct {
	Date   time.Time
	Status Status
}

// Summary は出勤記録の集計結果です。
type Summary struct {
	Present int
	Late    int
	Absent  int
}

// ParseStatus は文字列を Status に変換します。
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPresent, StatusLate, StatusAbsent:
		return st, nil
	}
	return "", errors.Newf("attendance: unknown status %q", s)
}

// Day は t の暦日を UTC 0 時として返します。t の Location における日付が使われます。
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate は yyyy-MM-dd 形式の日付を解析します。
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDateRange, "parse date %q", s)
	}
	return t, nil
}

// FormatDate は日付を yyyy-MM-dd 形式で返します。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween は start から end までの暦日差を返します。
func DaysBetween(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours() / 24)
}

// GenerateRange は [start, end] の各日について ABSENT の記録を 1 件ずつ生成します。
func GenerateRange(start, end time.Time) ([]Daily, error) {
	if start.IsZero() || end.IsZero() {
		return nil, ErrInvalidDateRange
	}
	from, to := Day(start), Day(end)
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	entries := make([]Daily, 0, DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		entries = append(entries, Daily{Date: d, Status: StatusAbsent})
	}
	return entries, nil
}

// FindByDate は date と同じ暦日の記録を返します。
func FindByDate(entries []Daily, date time.Time) (Daily, bool) {
	target := Day(date)
	for _, e := range entries {
		if Day(e.Date).Equal(target) {
			return e, true
		}
	}
	return Daily{}, false
}

// Summarize は状態ごとの件数を数えます。
func Summarize(entries []Daily) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Status {
		case StatusPresent:
			s.Present++
		case StatusLate:
			s.Late++
		case StatusAbsent:
			s.Absent++
		}
	}
	return s
}

// Upsert は同じ暦日の記録を置き換え、無ければ日付順を保って挿入した新しいスライスを返します。
func Upsert(entries []Daily, entry Daily) []Daily {
	entry.Date = Day(entry.Date)

	out := make([]Daily, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if Day(e.Date).Equal(entry.Date) {
			if !replaced {
				out = append(out, entry)
				replaced = true
			}
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
