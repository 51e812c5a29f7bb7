package coach

import "time"

// Defaults for grading and sample filtering.
const (
	// DefaultReferencePitch is the tuning reference for A4 in Hz.
	DefaultReferencePitch = 440.0
	// DefaultClarityThreshold rejects detector samples below this
	// confidence; they carry no information.
	DefaultClarityThreshold = 0.6
	// Playable violin range with some margin: below the open G string and
	// above the usable fingerboard nothing is gradable.
	DefaultMinFrequency = 180.0
	DefaultMaxFrequency = 4200.0

	// stableAccuracyHold is how long an uninterrupted in-tolerance streak
	// must last before the transport starts running.
	stableAccuracyHold = 250 * time.Millisecond
)

type Config struct {
	DBPath           string
	ReferencePitch   float64 // A4 in Hz
	ClarityThreshold float64
	MinFrequency     float64
	MaxFrequency     float64
	Logger           Logger
	Storage          Storage
	Now              func() time.Time
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithReferencePitch(hz float64) Option {
	return func(c *Config) {
		if hz > 0 {
			c.ReferencePitch = hz
		}
	}
}

func WithClarityThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ClarityThreshold = threshold
	}
}

func WithFrequencyRange(minHz, maxHz float64) Option {
	return func(c *Config) {
		if minHz > 0 && maxHz > minHz {
			c.MinFrequency = minHz
			c.MaxFrequency = maxHz
		}
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithClock injects the time source used by transport scheduling and the
// tempo feedback loop. Tests use it to drive beats deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:           "violin-coach.sqlite3",
		ReferencePitch:   DefaultReferencePitch,
		ClarityThreshold: DefaultClarityThreshold,
		MinFrequency:     DefaultMinFrequency,
		MaxFrequency:     DefaultMaxFrequency,
		Now:              time.Now,
	}
}
