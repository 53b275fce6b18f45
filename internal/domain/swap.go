package domain

import "github.com/shopspring/decimal"

// SwapStatus is the lifecycle state of a skill exchange.
type SwapStatus string

const (
	SwapPending  SwapStatus = "pending"
	SwapAccepted SwapStatus = "accepted"
	SwapRejected SwapStatus = "rejected"
)

// Swap is a skill-exchange relationship between two users. An accepted swap
// is the thread that messages belong to; its ID is the thread ID.
type Swap struct {
	ID           string          `json:"id"`
	Requester    User            `json:"requester"`
	Recipient    User            `json:"recipient"`
	OfferedSkill string          `json:"offeredSkill,omitempty"`
	WantedSkill  string          `json:"wantedSkill,omitempty"`
	Credits      decimal.Decimal `json:"credits"`
	Status       SwapStatus      `json:"status"`
}

// HasThread reports whether messaging is open for this swap.
func (s Swap) HasThread() bool { return s.Status == SwapAccepted }

// OtherParty returns the participant that is not the viewer.
func (s Swap) OtherParty(viewerID string) User {
	if s.Requester.ID == viewerID {
		return s.Recipient
	}
	return s.Requester
}
