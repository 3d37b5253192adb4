package model

import "time"

// RequesterInfo is the network context of a redemption request.
type RequesterInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Country   string `json:"country,omitempty"`
}

// ActivationLog is one persisted activation event.
type ActivationLog struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	DeviceID  string    `db:"device_id" json:"deviceId"`
	IP        string    `db:"ip" json:"ip,omitempty"`
	UserAgent string    `db:"user_agent" json:"userAgent,omitempty"`
	Country   string    `db:"country" json:"country,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

type TypeCount struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// StoreStats is a derived view over all records; it is never authoritative.
type StoreStats struct {
	TotalCodes  int                    `json:"totalCodes"`
	TotalUsed   int                    `json:"totalUsed"`
	Unused      int                    `json:"unused"`
	Expired     int                    `json:"expired"`
	LastUpdated *time.Time             `json:"lastUpdated,omitempty"`
	ByType      map[CodeType]TypeCount `json:"byType"`
	ByBatch     map[string]int         `json:"byBatch"`
}

func NewStoreStats() *StoreStats {
	return &StoreStats{
		ByType:  make(map[CodeType]TypeCount),
		ByBatch: make(map[string]int),
	}
}

// Add folds one record into the stats.
func (s *StoreStats) Add(r *CodeRecord, now time.Time) {
	s.TotalCodes++
	tc := s.ByType[r.Type]
	tc.Total++
	if r.CurrentUses > 0 {
		s.TotalUsed++
		tc.Used++
	} else {
		s.Unused++
	}
	s.ByType[r.Type] = tc
	s.ByBatch[r.Batch]++
	if r.IsExpired(now) {
		s.Expired++
	}

	touched := r.CreatedAt
	if r.LastUsed != nil && r.LastUsed.After(touched) {
		touched = *r.LastUsed
	}
	if s.LastUpdated == nil || touched.After(*s.LastUpdated) {
		t := touched
		s.LastUpdated = &t
	}
}

// UsageRate is the share of codes with at least one use, in percent.
func (s *StoreStats) UsageRate() float64 {
	if s.TotalCodes == 0 {
		return 0
	}
	return float64(s.TotalUsed) / float64(s.TotalCodes) * 100
}
