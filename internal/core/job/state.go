package job

// 求人内の従業員状態の遷移:
//
//	APPLYING ──accept──► WORKING
//	INVITING ──accept──► WORKING
//	APPLYING / INVITING / PRESENT / WORKING ──deny──► DENIED
//	ENDED 以外 ──expire──► ENDED
//
// PRESENT は定義のみで、これを生成する操作はありません。

// State は従業員の状態です。
type State string

const (
	StateApplying State = "APPLYING"
	StateInviting State = "INVITING"
	StatePresent  State = "PRESENT"
	StateWorking  State = "WORKING"
	StateEnded    State = "ENDED"
	StateDenied   State = "DENIED"
)

// Trigger は状態遷移を引き起こす操作です。
type Trigger string

const (
	TriggerAccept Trigger = "accept"
	TriggerDeny   Trigger = "deny"
	TriggerExpire Trigger = "expire"
	TriggerInvite Trigger = "invite"
)

var validTransitions = map[Trigger]map[State]State{
	TriggerAccept: {
		StateApplying: StateWorking,
		StateInviting: StateWorking,
	},
	TriggerDeny: {
		StateApplying: StateDenied,
		StateInviting: StateDenied,
		StatePresent:  StateDenied,
		StateWorking:  StateDenied,
	},
	TriggerExpire: {
		StateApplying: StateEnded,
		StateInviting: StateEnded,
		StatePresent:  StateEnded,
		StateWorking:  StateEnded,
		StateDenied:   StateEnded,
	},
	// 再招待は就業中の関係を上書きしない
	TriggerInvite: {
		StateApplying: StateInviting,
		StateInviting: StateInviting,
		StateEnded:    StateInviting,
		StateDenied:   StateInviting,
	},
}

// ParseState は文字列を State に変換します。
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateApplying, StateInviting, StatePresent, StateWorking, StateEnded, StateDenied:
		return st, nil
	}
	return "", ErrSchema
}

// Next は from に trigger を適用した遷移先を返します。遷移できない場合は false です。
func Next(from State, trigger Trigger) (State, bool) {
	to, ok := validTransitions[trigger][from]
	return to, ok
}

// IsTerminal は以降の遷移が定義されない状態かどうかを返します。
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateDenied
}

// Occupies は募集人数の枠を消費する状態かどうかを返します。
func (s State) Occupies() bool {
	switch s {
	case StateApplying, StateInviting, StatePresent, StateWorking:
		return true
	default:
		return false
	}
}
