package game

// TimerConfig is the optional Fischer-clock configuration for a game: each
// seat starts with InitialTimeSecs on its clock and gains IncrementSecs after
// every successful move it makes.
type TimerConfig struct {
	InitialTimeSecs int64 `json:"initial_time_secs"`
	IncrementSecs   int64 `json:"increment_secs"`
}

// PlayerClocks holds the remaining time per seat, in milliseconds. Only the
// seat currently to act is ticking; bookkeeping of elapsed time is done by
// the clock-driving collaborator, not here.
type PlayerClocks struct {
	RemainingMs [4]int64 `json:"remaining_ms"`
}

// NewPlayerClocks initializes all four clocks from the configured initial time.
func NewPlayerClocks(cfg TimerConfig) *PlayerClocks {
	var clocks PlayerClocks
	for i := range clocks.RemainingMs {
		clocks.RemainingMs[i] = cfg.InitialTimeSecs * 1000
	}
	return &clocks
}
