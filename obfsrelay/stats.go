package obfsrelay

import "sync/atomic"

// UserStats are a single user's lock-free counters. They are the only
// state shared across connections, so every field is an atomic: the
// reactor never needs to take a lock to update or read them.
type UserStats struct {
	connects       atomic.Int64
	currConnectsX2 atomic.Int64
	octets         atomic.Int64
}

// Connects returns the number of connections ever authenticated as this
// user.
func (s *UserStats) Connects() int64 { return s.connects.Load() }

// CurrentConnections returns the number of connections currently relaying
// traffic for this user (curr_connects_x2 / 2, since each connection runs
// two pumps).
func (s *UserStats) CurrentConnections() int64 { return s.currConnectsX2.Load() / 2 }

// Octets returns the total number of bytes relayed for this user, summed
// across both directions.
func (s *UserStats) Octets() int64 { return s.octets.Load() }

func (s *UserStats) addConnect()       { s.connects.Add(1) }
func (s *UserStats) addPumpStart()     { s.currConnectsX2.Add(1) }
func (s *UserStats) addPumpEnd()       { s.currConnectsX2.Add(-1) }
func (s *UserStats) addOctets(n int64) { s.octets.Add(n) }

// StatsRegistry holds one UserStats entry per configured user, created at
// startup and live for the process lifetime.
type StatsRegistry struct {
	byUser map[string]*UserStats
}

// NewStatsRegistry builds a registry with one zeroed entry per user.
func NewStatsRegistry(users UserTable) *StatsRegistry {
	r := &StatsRegistry{byUser: make(map[string]*UserStats, len(users))}

	for _, u := range users {
		r.byUser[u.Name] = &UserStats{}
	}

	return r
}

// For returns the stats entry for a user, or nil if the user is unknown.
func (r *StatsRegistry) For(user string) *UserStats {
	return r.byUser[user]
}

// Snapshot is a point-in-time copy of one user's counters, safe to read
// after the registry has moved on.
type Snapshot struct {
	User               string
	Connects           int64
	CurrentConnections int64
	Octets             int64
}

// Snapshot returns a stable copy of every user's counters, for a stats
// printer or exporter to read without racing the reactor.
func (r *StatsRegistry) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(r.byUser))

	for name, s := range r.byUser {
		out = append(out, Snapshot{
			User:               name,
			Connects:           s.Connects(),
			CurrentConnections: s.CurrentConnections(),
			Octets:             s.Octets(),
		})
	}

	return out
}
