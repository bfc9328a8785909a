package domain

import "time"

// TimestampLayout is the ISO-8601 instant format issuers stamp on claims.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Metrics struct {
	MRR       uint64 `json:"mrr"`
	Customers uint64 `json:"customers"`
	Tier      string `json:"tier"`
}

// Claim is a signed badge as it crosses the wire. Only Metrics, Timestamp and
// (when present) AccountHash are covered by the signature.
type Claim struct {
	DID          string     `json:"did"`
	Metrics      *Metrics   `json:"metrics"`
	PublicKey    string     `json:"publicKey"`
	Signature    string     `json:"signature"`
	Timestamp    string     `json:"timestamp"`
	AccountHash  *string    `json:"accountHash,omitempty"`
	DisplayName  *string    `json:"displayName,omitempty"`
	RevealExact  *bool      `json:"revealExact,omitempty"`
	JoinedGroup  *GroupTag  `json:"joinedGroup,omitempty"`
	JoinedGroups []GroupTag `json:"joinedGroups,omitempty"`
}

func (c Claim) HasAccountHash() bool {
	return c.AccountHash != nil && *c.AccountHash != ""
}

func (c Claim) AccountHashValue() string {
	if c.AccountHash == nil {
		return ""
	}
	return *c.AccountHash
}

func (c Claim) DisplayNameValue() string {
	if c.DisplayName == nil {
		return ""
	}
	return *c.DisplayName
}

func (c Claim) RevealExactValue() bool {
	return c.RevealExact != nil && *c.RevealExact
}

// SignedAt parses the claim timestamp. Claims carry RFC 3339 instants with or
// without fractional seconds.
func (c Claim) SignedAt() (time.Time, error) {
	return ParseTimestamp(c.Timestamp)
}

func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// StoredRecord is the authoritative row derived from accepted claims.
type StoredRecord struct {
	ID           string
	DID          string
	AccountHash  string
	Metrics      Metrics
	PublicKey    string
	Signature    string
	Timestamp    time.Time
	RawTimestamp string
	DisplayName  string
	RevealExact  bool
	JoinedGroups []GroupTag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claim rebuilds the signed claim carried by the record so it can be
// re-verified by relying parties.
func (r StoredRecord) Claim() Claim {
	metrics := r.Metrics
	claim := Claim{
		DID:          r.DID,
		Metrics:      &metrics,
		PublicKey:    r.PublicKey,
		Signature:    r.Signature,
		Timestamp:    r.RawTimestamp,
		JoinedGroups: append([]GroupTag(nil), r.JoinedGroups...),
	}
	if r.AccountHash != "" {
		hash := r.AccountHash
		claim.AccountHash = &hash
	}
	if r.DisplayName != "" {
		name := r.DisplayName
		claim.DisplayName = &name
	}
	reveal := r.RevealExact
	claim.RevealExact = &reveal
	return claim
}

func (r StoredRecord) HasGroup(tag GroupTag) bool {
	for _, g := range r.JoinedGroups {
		if g == tag {
			return true
		}
	}
	return false
}

type DedupKeyKind string

const (
	DedupByAccountHash DedupKeyKind = "account_hash"
	DedupByDID         DedupKeyKind = "did"
)

// DedupKey selects the stored record a submission resolves against.
type DedupKey struct {
	Kind  DedupKeyKind
	Value string
}

func (k DedupKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

type ResolutionAction string

const (
	ResolutionInsert ResolutionAction = "insert"
	ResolutionUpdate ResolutionAction = "update"
)

type Resolution struct {
	Action ResolutionAction
	Record StoredRecord
}

func (r Resolution) IsUpdate() bool {
	return r.Action == ResolutionUpdate
}
