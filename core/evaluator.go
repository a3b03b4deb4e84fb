package core

// Evaluation is the result of checking a requirement set against counters.
// Progress is the sum of min(value, threshold) across requirements, so a UI
// can render partial completion while Satisfied is still false.
type Evaluation struct {
	Satisfied bool
	Progress  int64
	Target    int64
}

// CounterLookup reads the current value of a counter. Unknown keys read as 0.
type CounterLookup func(key CounterKey) int64

// Evaluate is pure and order-independent: requirements are conjunctive, so
// reordering them never changes the result.
func Evaluate(reqs []Requirement, lookup CounterLookup) Evaluation {
	ev := Evaluation{Satisfied: true}
	for _, r := range reqs {
		v := lookup(r.Key)
		if v < 0 {
			v = 0
		}
		if v < r.Threshold {
			ev.Satisfied = false
			ev.Progress += v
		} else {
			ev.Progress += r.Threshold
		}
		ev.Target += r.Threshold
	}
	return ev
}
