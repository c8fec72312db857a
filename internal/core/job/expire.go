package job

import (
	"time"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
)

// EndExpiredJobs は dateEnd < today の求人に属する ENDED 以外の従業員を ENDED にします。
// jobs の Employee を直接更新し、発生した遷移を返します。何度適用しても結果は同じです。
func EndExpiredJobs(jobs []*Job, today time.Time) []Transition {
	day := attendance.Day(today)

	var transitions []Transition
	for _, j := range jobs {
		if j == nil || !attendance.Day(j.DateEnd).Before(day) {
			continue
		}
		for _, e := range j.Employees {
			to, ok := Next(e.State, TriggerExpire)
			if !ok {
				continue
			}
			transitions = append(transitions, Transition{
				JobID:      j.ID,
				EmployeeID: e.ID,
				PersonID:   e.PersonID,
				From:       e.State,
				To:         to,
			})
			e.State = to
		}
	}
	return transitions
}
