// Package strategy implements the ordered fallback chain shared by entity
// resolution and document search: try each attempt in turn, stop at the first
// one that yields results, keep a trace of everything tried.
package strategy

// Attempt is one labeled try. Run reports how many results it produced;
// zero with a nil error means "worked but found nothing", which does not
// stop the chain.
type Attempt struct {
	Label string
	Run   func() (int, error)
}

// Outcome records one executed attempt for diagnostics.
type Outcome struct {
	Label   string `json:"label"`
	Results int    `json:"results"`
	Err     error  `json:"-"`
}

// Status renders the outcome for logs and degraded-result payloads.
func (o Outcome) Status() string {
	switch {
	case o.Err != nil:
		return "error"
	case o.Results > 0:
		return "success"
	default:
		return "empty"
	}
}

// Execute runs attempts in declared order and short-circuits on the first
// attempt returning at least one result without error. It returns the winning
// label ("" when the chain is exhausted) and the outcomes of every attempt
// actually executed.
func Execute(attempts []Attempt) (string, []Outcome) {
	outcomes := make([]Outcome, 0, len(attempts))
	for _, a := range attempts {
		n, err := a.Run()
		outcomes = append(outcomes, Outcome{Label: a.Label, Results: n, Err: err})
		if err == nil && n > 0 {
			return a.Label, outcomes
		}
	}
	return "", outcomes
}

// Labels lists the labels of the given outcomes, for "we tried X, Y, Z"
// messages.
func Labels(outcomes []Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Label
	}
	return out
}
