package dialogue

// Trimmer bounds the transcript placed in a turn prompt.
type Trimmer interface {
	Trim(history []Turn) []Turn
}

// KeepLastNTrimmer keeps the opening turn and the last N turns after it.
// When N <= 0, it keeps only the opening turn.
type KeepLastNTrimmer struct {
	N int
}

func (t KeepLastNTrimmer) Trim(history []Turn) []Turn {
	if len(history) <= 1 {
		return history
	}
	if t.N <= 0 {
		return history[:1]
	}
	rest := history[1:]
	if len(rest) <= t.N {
		return history
	}
	out := make([]Turn, 0, t.N+1)
	out = append(out, history[0])
	return append(out, rest[len(rest)-t.N:]...)
}
