package client

import "fmt"

// Outcome of resolving a slot query against a palinsesto.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeNotBookable
	OutcomeBookable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotBookable:
		return "not bookable"
	case OutcomeBookable:
		return "bookable"
	}
	return "not found"
}

// SlotQuery identifies the wanted class session.
type SlotQuery struct {
	Date   string // YYYY-MM-DD
	Course string
	Start  string // HH:MM
	End    string // HH:MM, compared only when MatchEnd is set
	// MatchEnd adds the end time to the match criteria.
	MatchEnd bool
}

func (q SlotQuery) String() string {
	s := fmt.Sprintf("%s il %s alle %s", q.Course, q.Date, q.Start)
	if q.MatchEnd {
		s += " - " + q.End
	}
	return s
}

// Resolution is the result of ResolveSlot. Slot and DayLabel are set unless
// Outcome is OutcomeNotFound.
type Resolution struct {
	Query    SlotQuery
	Outcome  Outcome
	Slot     Slot
	DayLabel string
}

// ResolveSlot selects the first slot of the first day dated q.Date whose start
// time and course (and end time, with MatchEnd) equal the query.
func ResolveSlot(p *Palinsesto, q SlotQuery) Resolution {
	res := Resolution{Query: q, Outcome: OutcomeNotFound}
	if p == nil {
		return res
	}
	for _, day := range p.Days {
		if string(day.Date) != q.Date {
			continue
		}
		for _, slot := range day.Slots {
			if !matches(slot, q) {
				continue
			}
			res.Slot = slot
			res.DayLabel = string(day.Label)
			if slot.Availability.Bookable() {
				res.Outcome = OutcomeBookable
			} else {
				res.Outcome = OutcomeNotBookable
			}
			return res
		}
	}
	return res
}

func matches(s Slot, q SlotQuery) bool {
	if string(s.Start) != q.Start || string(s.Course) != q.Course {
		return false
	}
	return !q.MatchEnd || string(s.End) == q.End
}

// Err converts a negative outcome into a KindResolution error.
func (r Resolution) Err() error {
	switch r.Outcome {
	case OutcomeBookable:
		return nil
	case OutcomeNotBookable:
		msg := fmt.Sprintf("slot %s for %s is not bookable", r.Slot.ID, r.Query)
		if r.Slot.Availability.Reason != "" {
			msg += ": " + string(r.Slot.Availability.Reason)
		}
		return newError(KindResolution, "resolve", msg, nil)
	}
	return newError(KindResolution, "resolve", fmt.Sprintf("no slot found for %s", r.Query), nil)
}
