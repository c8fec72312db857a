package job

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestNext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    State
		trigger Trigger
		want    State
		ok      bool
	}{
		{StateApplying, TriggerAccept, StateWorking, true},
		{StateInviting, TriggerAccept, StateWorking, true},
		{StateWorking, TriggerAccept, "", false},
		{StateDenied, TriggerAccept, "", false},
		{StateApplying, TriggerDeny, StateDenied, true},
		{StatePresent, TriggerDeny, StateDenied, true},
		{StateWorking, TriggerDeny, StateDenied, true},
		{StateEnded, TriggerDeny, "", false},
		{StateDenied, TriggerDeny, "", false},
		{StateDenied, TriggerExpire, StateEnded, true},
		{StateWorking, TriggerExpire, StateEnded, true},
		{StateEnded, TriggerExpire, "", false},
		{StateEnded, TriggerInvite, StateInviting, true},
		{StateDenied, TriggerInvite, StateInviting, true},
		{StateWorking, TriggerInvite, "", false},
		{StatePresent, TriggerInvite, "", false},
	}

	for _, tc := range cases {
		got, ok := Next(tc.from, tc.trigger)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Next(%s, %s) = (%s, %v), want (%s, %v)", tc.from, tc.trigger, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	if st, err := ParseState("WORKING"); err != nil || st != StateWorking {
		t.Fatalf("unexpected result: %s %v", st, err)
	}
	for _, raw := range []string{"", "working", "FIRED"} {
		if _, err := ParseState(raw); !errors.Is(err, ErrSchema) {
			t.Fatalf("ParseState(%q): expected ErrSchema, got %v", raw, err)
		}
	}
}

func TestState_Occupies(t *testing.T) {
	t.Parallel()

	for _, st := range []State{StateApplying, StateInviting, StatePresent, StateWorking} {
		if !st.Occupies() || st.IsTerminal() {
			t.Fatalf("%s should occupy a position and not be terminal", st)
		}
	}
	for _, st := range []State{StateEnded, StateDenied} {
		if st.Occupies() || !st.IsTerminal() {
			t.Fatalf("%s should be terminal and free", st)
		}
	}
}
