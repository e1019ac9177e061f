package txn

import "testing"

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusChatStarted, true},
		{StatusPending, StatusWaitingPayment, true},
		{StatusChatStarted, StatusWaitingPayment, true},
		{StatusWaitingPayment, StatusPaymentReceived, true},
		{StatusWaitingPayment, StatusCheckReceived, true}, // scenario 4: receipt before "paid"
		{StatusPaymentReceived, StatusCheckReceived, true},
		{StatusCheckReceived, StatusCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusFailed, false}, // no transitions out of a terminal state
		{StatusFailed, StatusPending, false},
		{StatusStupid, StatusCompleted, false},
	}
	for _, c := range cases {
		if got := Allowed(c.from, c.to); got != c.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelledByCounter, StatusStupid} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusChatStarted, StatusWaitingPayment, StatusPaymentReceived, StatusCheckReceived} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
