package listcheck

import (
	"runtime"
	"time"
)

// Default check configuration.
const (
	DefaultBaseURL    = "http://localhost:9080"
	DefaultOperations = 200
	DefaultSeedLevels = 10
	DefaultTimeout    = 30 * time.Second
)

// Config holds configuration for a remote check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Username   string        // Admin username, used with Password to obtain a token
	Password   string        // Admin password
	Token      string        // Pre-issued bearer token; wins over Username/Password
	Operations int           // Number of random edits to perform
	SeedLevels int           // Levels created first when the list is empty
	Readers    int           // Concurrent readers hammering the read endpoints
	Seed       int64         // Seed for the level generator; 0 picks one from the clock
	Timeout    time.Duration // HTTP request timeout
	Restore    bool          // Put the original list back when the run ends
	Verbose    bool          // Log every operation
}

// DefaultConfig returns the configuration used by levelctl when no flags are given.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Operations: DefaultOperations,
		SeedLevels: DefaultSeedLevels,
		Readers:    runtime.NumCPU(),
		Timeout:    DefaultTimeout,
		Restore:    true,
	}
}

// Stats holds the outcome of a check run.
type Stats struct {
	Creates        int
	Updates        int
	Deletes        int
	Duplicates     int
	Reads          int
	SwapRoundTrips int
	StartTime      time.Time
	Duration       time.Duration
}
