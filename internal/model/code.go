package model

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

type CodeType string

const (
	CodeTypeCustomer   CodeType = "customer"
	CodeTypeInfluencer CodeType = "influencer"
	CodeTypeDemo       CodeType = "demo"
	CodeTypeLaunch     CodeType = "launch"
	CodeTypePromo      CodeType = "promo"
)

// TypeTag is the four-letter segment that encodes a CodeType inside a code string.
type TypeTag string

const (
	TagCustomer   TypeTag = "CUST"
	TagInfluencer TypeTag = "INFL"
	TagDemo       TypeTag = "DEMO"
	TagLaunch     TypeTag = "LNCH"
	TagPromo      TypeTag = "PRMO"
)

type CodeStatus string

const (
	CodeStatusUnused CodeStatus = "unused"
	CodeStatusUsed   CodeStatus = "used"
)

const (
	FeatureAll    = "all"
	FeatureQuiz   = "quiz"
	FeatureGuides = "guides"
)

const day = 24 * time.Hour

// Policy is fixed at issuance time and copied into the record.
type Policy struct {
	Tag      TypeTag
	Features []string
	Horizon  time.Duration
	MaxUses  int
}

var policies = map[CodeType]Policy{
	CodeTypeDemo:       {Tag: TagDemo, Features: []string{FeatureQuiz}, Horizon: 7 * day, MaxUses: 1},
	CodeTypePromo:      {Tag: TagPromo, Features: []string{FeatureQuiz, FeatureGuides}, Horizon: 30 * day, MaxUses: 1},
	CodeTypeLaunch:     {Tag: TagLaunch, Features: []string{FeatureAll}, Horizon: 90 * day, MaxUses: 1},
	CodeTypeCustomer:   {Tag: TagCustomer, Features: []string{FeatureAll}, Horizon: 365 * day, MaxUses: 1},
	CodeTypeInfluencer: {Tag: TagInfluencer, Features: []string{FeatureAll}, Horizon: 730 * day, MaxUses: 5},
}

// AllCodeTypes lists every issuable type in a stable order.
var AllCodeTypes = []CodeType{
	CodeTypeCustomer,
	CodeTypeInfluencer,
	CodeTypeDemo,
	CodeTypeLaunch,
	CodeTypePromo,
}

// PolicyFor returns the issuance policy for t. The Features slice is a copy.
func PolicyFor(t CodeType) (Policy, bool) {
	p, ok := policies[t]
	if !ok {
		return Policy{}, false
	}
	p.Features = slices.Clone(p.Features)
	return p, true
}

// TypeForTag maps a code segment back to its CodeType.
func TypeForTag(tag TypeTag) (CodeType, bool) {
	for t, p := range policies {
		if p.Tag == tag {
			return t, true
		}
	}
	return "", false
}

func (t CodeType) IsValid() bool {
	_, ok := policies[t]
	return ok
}

func (t CodeType) Tag() TypeTag {
	return policies[t].Tag
}

// CodeRecord is the stored state of one issued code.
type CodeRecord struct {
	Code        string         `db:"code" json:"code"`
	Type        CodeType       `db:"type" json:"type"`
	Status      CodeStatus     `db:"status" json:"status"`
	Features    pq.StringArray `db:"features" json:"features"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expiresAt"`
	MaxUses     int            `db:"max_uses" json:"maxUses"`
	CurrentUses int            `db:"current_uses" json:"currentUses"`
	Devices     pq.StringArray `db:"devices" json:"devices"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	LastUsed    *time.Time     `db:"last_used" json:"lastUsed,omitempty"`
	Batch       string         `db:"batch" json:"batch"`
	Notes       string         `db:"notes" json:"notes,omitempty"`
	Email       *string        `db:"email" json:"email,omitempty"`
}

// NewCodeRecord builds a fresh, unused record from the type's policy.
func NewCodeRecord(code string, t CodeType, batch, notes string, now time.Time) (*CodeRecord, bool) {
	p, ok := PolicyFor(t)
	if !ok {
		return nil, false
	}
	return &CodeRecord{
		Code:        code,
		Type:        t,
		Status:      CodeStatusUnused,
		Features:    p.Features,
		ExpiresAt:   now.Add(p.Horizon),
		MaxUses:     p.MaxUses,
		CurrentUses: 0,
		Devices:     pq.StringArray{},
		CreatedAt:   now,
		Batch:       batch,
		Notes:       notes,
	}, true
}

func (r *CodeRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsExhausted reports whether no new device may bind. A zero MaxUses means uncapped.
func (r *CodeRecord) IsExhausted() bool {
	return r.MaxUses > 0 && r.CurrentUses >= r.MaxUses
}

func (r *CodeRecord) HasDevice(deviceID string) bool {
	return slices.Contains(r.Devices, deviceID)
}

// Bind consumes one use for deviceID.
func (r *CodeRecord) Bind(deviceID string, email string, now time.Time) {
	r.CurrentUses++
	r.Devices = append(r.Devices, deviceID)
	r.Status = CodeStatusUsed
	r.LastUsed = &now
	if email != "" {
		r.Email = &email
	}
}

func (r *CodeRecord) Clone() *CodeRecord {
	c := *r
	c.Features = slices.Clone(r.Features)
	c.Devices = slices.Clone(r.Devices)
	if c.Devices == nil {
		c.Devices = pq.StringArray{}
	}
	if r.LastUsed != nil {
		t := *r.LastUsed
		c.LastUsed = &t
	}
	if r.Email != nil {
		e := *r.Email
		c.Email = &e
	}
	return &c
}
