package audio

import "io"

// DurationProber reports the playable length of an uploaded audio payload.
// Decoding is delegated to an external utility; the server only consumes the
// resulting value.
type DurationProber interface {
	ProbeDuration(payload io.Reader) (int64, error)
}

const placeholderDurationMS = 5000

type fixedProber struct{}

// NewFixedProber returns a prober that reports a constant mid-range duration.
// It stands in until a real decoder is wired behind the DurationProber seam.
func NewFixedProber() DurationProber {
	return fixedProber{}
}

func (fixedProber) ProbeDuration(io.Reader) (int64, error) {
	return placeholderDurationMS, nil
}
