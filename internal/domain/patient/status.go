package patient

// Status is the patient's position in the activation funnel. The labels match
// what the portal renders, so they double as display strings.
type Status string

const (
	StatusPendingApproval Status = "Pending Approval"
	StatusApproved        Status = "Approved"
	StatusOutreachFirst   Status = "Outreach - 1st Attempt"
	StatusOutreachSecond  Status = "Outreach - 2nd Attempt"
	StatusConsentSent     Status = "Consent Sent"
	StatusScheduledWithCM Status = "Scheduled with CM"
	StatusDeviceShipped   Status = "Device Shipped"
	StatusActive          Status = "Active"
	StatusNotApproved     Status = "Not Approved"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusOutreachFirst,
		StatusOutreachSecond, StatusConsentSent, StatusScheduledWithCM,
		StatusDeviceShipped, StatusActive, StatusNotApproved:
		return true
	}
	return false
}

// Event is a state-machine input. Events are what happened, not what the
// status should become; the transition table decides that.
type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventReset   Event = "reset"
	// EventCallLogged is a call outcome with no appointment booked. It
	// drives attempt escalation and nothing else: a third or later call
	// keeps the patient at the second attempt.
	EventCallLogged Event = "call_logged"
	// EventAppointmentBooked is a call outcome whose next action books a
	// care-manager appointment. Booking always wins over attempt
	// escalation.
	EventAppointmentBooked Event = "appointment_booked"
	// EventConsentScheduled is the direct scheduling path that bypasses
	// call logging.
	EventConsentScheduled Event = "consent_scheduled"
	EventDeviceShipped    Event = "device_shipped"
	EventActivated        Event = "activated"
)

// transitions is the full state+event table. Pairs absent from the table are
// no-ops: Next returns the current status unchanged, making every transition
// total. The UI layer gates which actions it offers per state; the engine
// does not re-validate caller intent beyond this table.
var transitions = map[Status]map[Event]Status{
	StatusPendingApproval: {
		EventApprove: StatusApproved,
		EventReject:  StatusNotApproved,
	},
	StatusApproved: {
		EventReject:            StatusNotApproved,
		EventReset:             StatusPendingApproval,
		EventCallLogged:        StatusOutreachFirst,
		EventAppointmentBooked: StatusScheduledWithCM,
		EventConsentScheduled:  StatusConsentSent,
	},
	StatusOutreachFirst: {
		EventReset:             StatusPendingApproval,
		EventCallLogged:        StatusOutreachSecond,
		EventAppointmentBooked: StatusScheduledWithCM,
		EventConsentScheduled:  StatusConsentSent,
	},
	StatusOutreachSecond: {
		EventReset:             StatusPendingApproval,
		EventAppointmentBooked: StatusScheduledWithCM,
		EventConsentScheduled:  StatusConsentSent,
	},
	StatusConsentSent: {
		EventReset:             StatusPendingApproval,
		EventAppointmentBooked: StatusScheduledWithCM,
		EventDeviceShipped:     StatusDeviceShipped,
	},
	StatusScheduledWithCM: {
		EventReset:         StatusPendingApproval,
		EventDeviceShipped: StatusDeviceShipped,
	},
	StatusDeviceShipped: {
		EventReset:     StatusPendingApproval,
		EventActivated: StatusActive,
	},
	// Active and Not Approved are terminal for the funnel but stay mutable:
	// an operator can always reopen a case.
	StatusActive: {
		EventReset: StatusPendingApproval,
	},
	StatusNotApproved: {
		EventApprove: StatusApproved,
		EventReset:   StatusPendingApproval,
	},
}

// Next applies an event to a status. Undefined pairs return the current
// status unchanged.
func Next(s Status, ev Event) Status {
	if row, ok := transitions[s]; ok {
		if next, ok := row[ev]; ok {
			return next
		}
	}
	return s
}

// Apply transitions the patient's status in place and reports whether the
// status actually changed.
func (p *Patient) Apply(ev Event) bool {
	next := Next(p.Status, ev)
	if next == p.Status {
		return false
	}
	p.Status = next
	return true
}

// AllowedEvents is the Moore-style output: the set of actions meaningful in
// the given state, in stable order. The UI uses this to decide which buttons
// to offer.
func AllowedEvents(s Status) []Event {
	order := []Event{
		EventApprove, EventReject, EventReset, EventCallLogged,
		EventAppointmentBooked, EventConsentScheduled, EventDeviceShipped,
		EventActivated,
	}
	row := transitions[s]
	var allowed []Event
	for _, ev := range order {
		if _, ok := row[ev]; ok {
			allowed = append(allowed, ev)
		}
	}
	return allowed
}
