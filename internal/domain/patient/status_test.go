package patient

import (
	"reflect"
	"testing"
)

func allStatuses() []Status {
	return []Status{
		StatusPendingApproval, StatusApproved, StatusOutreachFirst,
		StatusOutreachSecond, StatusConsentSent, StatusScheduledWithCM,
		StatusDeviceShipped, StatusActive, StatusNotApproved,
	}
}

func allEvents() []Event {
	return []Event{
		EventApprove, EventReject, EventReset, EventCallLogged,
		EventAppointmentBooked, EventConsentScheduled, EventDeviceShipped,
		EventActivated,
	}
}

func TestApprovalPath(t *testing.T) {
	if got := Next(StatusPendingApproval, EventApprove); got != StatusApproved {
		t.Errorf("approve from pending = %q, want %q", got, StatusApproved)
	}
	if got := Next(StatusPendingApproval, EventReject); got != StatusNotApproved {
		t.Errorf("reject from pending = %q, want %q", got, StatusNotApproved)
	}
	// A rejected patient can be approved later without a reset in between.
	if got := Next(StatusNotApproved, EventApprove); got != StatusApproved {
		t.Errorf("approve from not-approved = %q, want %q", got, StatusApproved)
	}
}

func TestOutreachEscalationNeverSkips(t *testing.T) {
	s := StatusApproved

	s = Next(s, EventCallLogged)
	if s != StatusOutreachFirst {
		t.Fatalf("first call = %q, want %q", s, StatusOutreachFirst)
	}

	s = Next(s, EventCallLogged)
	if s != StatusOutreachSecond {
		t.Fatalf("second call = %q, want %q", s, StatusOutreachSecond)
	}

	// Third and later calls are still logged but the status plateaus.
	s = Next(s, EventCallLogged)
	if s != StatusOutreachSecond {
		t.Errorf("third call = %q, want plateau at %q", s, StatusOutreachSecond)
	}
}

func TestBookingWinsOverEscalation(t *testing.T) {
	for _, from := range []Status{StatusApproved, StatusOutreachFirst, StatusOutreachSecond, StatusConsentSent} {
		if got := Next(from, EventAppointmentBooked); got != StatusScheduledWithCM {
			t.Errorf("booking from %q = %q, want %q", from, got, StatusScheduledWithCM)
		}
	}
}

func TestConsentPath(t *testing.T) {
	for _, from := range []Status{StatusApproved, StatusOutreachFirst, StatusOutreachSecond} {
		if got := Next(from, EventConsentScheduled); got != StatusConsentSent {
			t.Errorf("consent from %q = %q, want %q", from, got, StatusConsentSent)
		}
	}
	if got := Next(StatusConsentSent, EventDeviceShipped); got != StatusDeviceShipped {
		t.Errorf("ship from consent = %q, want %q", got, StatusDeviceShipped)
	}
	if got := Next(StatusDeviceShipped, EventActivated); got != StatusActive {
		t.Errorf("activate from shipped = %q, want %q", got, StatusActive)
	}
}

func TestResetReturnsToPendingFromEverywhere(t *testing.T) {
	for _, s := range allStatuses() {
		got := Next(s, EventReset)
		if s == StatusPendingApproval {
			if got != StatusPendingApproval {
				t.Errorf("reset from pending = %q, want no-op", got)
			}
			continue
		}
		if got != StatusPendingApproval {
			t.Errorf("reset from %q = %q, want %q", s, got, StatusPendingApproval)
		}
	}
}

func TestUndefinedPairsAreNoOps(t *testing.T) {
	// Every status/event pair must produce a valid status; undefined pairs
	// return the input unchanged.
	for _, s := range allStatuses() {
		for _, ev := range allEvents() {
			got := Next(s, ev)
			if !got.IsValid() {
				t.Errorf("Next(%q, %q) = %q, not a valid status", s, ev, got)
			}
		}
	}

	// Spot checks on pairs that must not fire.
	if got := Next(StatusActive, EventCallLogged); got != StatusActive {
		t.Errorf("call on active patient = %q, want no-op", got)
	}
	if got := Next(StatusPendingApproval, EventCallLogged); got != StatusPendingApproval {
		t.Errorf("call before approval = %q, want no-op", got)
	}
	if got := Next(StatusScheduledWithCM, EventAppointmentBooked); got != StatusScheduledWithCM {
		t.Errorf("re-book from scheduled = %q, want no-op", got)
	}
}

func TestApplyReportsChange(t *testing.T) {
	p := &Patient{Status: StatusPendingApproval}

	if !p.Apply(EventApprove) {
		t.Fatal("approve from pending should report a change")
	}
	if p.Status != StatusApproved {
		t.Fatalf("status after approve = %q", p.Status)
	}

	if p.Apply(EventActivated) {
		t.Error("activated from approved should be a no-op")
	}
	if p.Status != StatusApproved {
		t.Errorf("no-op mutated status to %q", p.Status)
	}
}

func TestAllowedEvents(t *testing.T) {
	got := AllowedEvents(StatusPendingApproval)
	want := []Event{EventApprove, EventReject}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllowedEvents(pending) = %v, want %v", got, want)
	}

	got = AllowedEvents(StatusDeviceShipped)
	want = []Event{EventReset, EventActivated}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllowedEvents(shipped) = %v, want %v", got, want)
	}
}
