package engine

// Outcome reports what a packet did. None of the outcomes is fatal; anything
// other than Applied means the engine state is unchanged.
type Outcome uint8

const (
	Applied Outcome = iota
	DroppedPoolFull
	IgnoredUnknownKind
	IgnoredUnknownUID
	IgnoredParamRange
	IgnoredUnknownOp
	IgnoredStaleSync
)

var outcomeNames = [...]string{
	Applied:            "applied",
	DroppedPoolFull:    "pool-full",
	IgnoredUnknownKind: "unknown-kind",
	IgnoredUnknownUID:  "unknown-uid",
	IgnoredParamRange:  "param-range",
	IgnoredUnknownOp:   "unknown-op",
	IgnoredStaleSync:   "stale-sync",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "invalid"
}

// Outcomes lists every outcome, for metric label pre-registration.
func Outcomes() []Outcome {
	out := make([]Outcome, len(outcomeNames))
	for i := range out {
		out[i] = Outcome(i)
	}
	return out
}
