package domain

import "time"

// StudyItem is one atomic fact or question with its revision state.
// A nil NextDue means the item is due now.
type StudyItem struct {
	ID            int64      `json:"id"`
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	Trigger       string     `json:"trigger"`
	PYQYears      string     `json:"pyq_years,omitempty"`
	HighYield     bool       `json:"high_yield"`
	RevisionCount int        `json:"revision_count"`
	FailCount     int        `json:"fail_count"`
	LastReviewed  *time.Time `json:"last_reviewed,omitempty"`
	NextDue       *time.Time `json:"next_due,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsWeak reports whether the item has at least one recorded failure.
func (i StudyItem) IsWeak() bool {
	return i.FailCount > 0
}

// IsNew reports whether the item has never been successfully reviewed.
func (i StudyItem) IsNew() bool {
	return i.RevisionCount == 0
}

// Clone returns a copy that shares no pointers with i.
func (i StudyItem) Clone() StudyItem {
	c := i
	if i.LastReviewed != nil {
		t := *i.LastReviewed
		c.LastReviewed = &t
	}
	if i.NextDue != nil {
		t := *i.NextDue
		c.NextDue = &t
	}
	return c
}

// IDs returns the ids of items in order.
func IDs(items []StudyItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
