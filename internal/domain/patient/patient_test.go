package patient

import (
	"reflect"
	"testing"
	"time"
)

func TestParseCodes(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"I10, E11", []string{"I10", "E11"}},
		{"i10,e11.9 , I10", []string{"I10", "E11.9"}},
		{"", nil},
		{" , ,", nil},
		{"J44", []string{"J44"}},
	}

	for _, tt := range tests {
		got := ParseCodes(tt.raw)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCodes(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestStamp(t *testing.T) {
	got := Stamp("2026-03-15", "09:45")
	if got != "2026-03-15T09:45" {
		t.Errorf("Stamp = %q", got)
	}
	if _, err := time.Parse(StampLayout, got); err != nil {
		t.Errorf("Stamp output does not round-trip through StampLayout: %v", err)
	}
}

func TestCallHistoryNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := &Patient{}
	p.AppendCallLog(CallLog{Notes: "oldest", Timestamp: base})
	p.AppendCallLog(CallLog{Notes: "newest", Timestamp: base.Add(48 * time.Hour)})
	p.AppendCallLog(CallLog{Notes: "middle", Timestamp: base.Add(24 * time.Hour)})

	history := p.CallHistory()
	want := []string{"newest", "middle", "oldest"}
	for i, note := range want {
		if history[i].Notes != note {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Notes, note)
		}
	}

	// The stored order is untouched.
	if p.CallLogs[0].Notes != "oldest" {
		t.Error("CallHistory reordered the underlying log")
	}
}

func TestNextActionValidation(t *testing.T) {
	valid := &NextAction{Kind: NextActionAppointment, Date: "2026-03-15", Time: "09:45"}
	if !valid.IsValid() {
		t.Error("well-formed appointment action rejected")
	}

	cases := []*NextAction{
		nil,
		{Kind: "email", Date: "2026-03-15", Time: "09:45"},
		{Kind: NextActionFollowUp, Date: "03/15/2026", Time: "09:45"},
		{Kind: NextActionFollowUp, Date: "2026-03-15", Time: "9:45am"},
		{Kind: NextActionAppointment, Date: "", Time: ""},
	}
	for i, a := range cases {
		if a.IsValid() {
			t.Errorf("case %d: invalid action accepted: %+v", i, a)
		}
	}
}

func TestInPipeline(t *testing.T) {
	in := []Status{StatusApproved, StatusOutreachFirst, StatusOutreachSecond,
		StatusConsentSent, StatusScheduledWithCM, StatusDeviceShipped}
	out := []Status{StatusPendingApproval, StatusActive, StatusNotApproved}

	for _, s := range in {
		if !(&Patient{Status: s}).InPipeline() {
			t.Errorf("%q should be in pipeline", s)
		}
	}
	for _, s := range out {
		if (&Patient{Status: s}).InPipeline() {
			t.Errorf("%q should not be in pipeline", s)
		}
	}
}
