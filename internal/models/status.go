package models

type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

func (s Side) Other() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Status is shared between bets and slips; slips additionally start in draft.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusCreated         Status = "created"
	StatusAwaitingDeposit Status = "awaiting_deposit"
	StatusConfirmed       Status = "confirmed"
	StatusResolved        Status = "resolved"
	StatusPaid            Status = "paid"
	StatusRefunded        Status = "refunded"
)

// statusRank orders the lifecycle. paid and refunded are both terminal, so a
// stale poll can never swap one terminal state for the other.
var statusRank = map[Status]int{
	StatusDraft:           0,
	StatusCreated:         1,
	StatusAwaitingDeposit: 2,
	StatusConfirmed:       3,
	StatusResolved:        4,
	StatusPaid:            5,
	StatusRefunded:        5,
}

// Advance returns the more advanced of the two statuses. Transitions are
// monotonic: a remote status behind the local one is treated as a stale read.
func Advance(local, remote Status) Status {
	if statusRank[remote] > statusRank[local] {
		return remote
	}
	return local
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusRefunded
}
