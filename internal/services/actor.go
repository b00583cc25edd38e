package services

import (
	"time"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"
)

// Actor is the authenticated user behind a call, plus where the call came from.
type Actor struct {
	User      *models.User
	IP        string
	UserAgent string
}

func (a Actor) Scope() policy.Scope {
	return policy.ScopeFor(a.User)
}

func (a Actor) Can(action policy.Action) bool {
	return a.User != nil && policy.Can(a.User.Role, action)
}

func (a Actor) require(action policy.Action) error {
	if !a.Can(action) {
		return ErrAccessDenied
	}
	return nil
}

func (a Actor) id() uint {
	if a.User == nil {
		return 0
	}
	return a.User.ID
}

func (a Actor) email() string {
	if a.User == nil {
		return ""
	}
	return a.User.Email
}

// Clock returns the current time. Services derive the calendar date for
// status decisions from it.
type Clock func() time.Time

func systemClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
