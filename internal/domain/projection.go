package domain

type PublicMetrics struct {
	MRR       *uint64 `json:"mrr,omitempty"`
	Customers *uint64 `json:"customers,omitempty"`
	Tier      string  `json:"tier"`
}

// PublicBadge is what read endpoints expose for a stored record.
type PublicBadge struct {
	DID          string        `json:"did"`
	Metrics      PublicMetrics `json:"metrics"`
	PublicKey    string        `json:"publicKey,omitempty"`
	Signature    string        `json:"signature,omitempty"`
	Timestamp    string        `json:"timestamp"`
	AccountHash  string        `json:"accountHash,omitempty"`
	DisplayName  string        `json:"displayName,omitempty"`
	RevealExact  bool          `json:"revealExact"`
	JoinedGroups []GroupTag    `json:"joinedGroups"`
}

// Project builds the public view of a record. Unless the issuer opted into
// revealing exact figures, only the tier recomputed from the stored revenue
// is shown, and the signature material that would let a reader recover the
// exact figures is withheld.
func Project(record StoredRecord) PublicBadge {
	out := PublicBadge{
		DID:          record.DID,
		Timestamp:    record.RawTimestamp,
		AccountHash:  record.AccountHash,
		DisplayName:  record.DisplayName,
		RevealExact:  record.RevealExact,
		JoinedGroups: append([]GroupTag{}, record.JoinedGroups...),
	}
	if out.Timestamp == "" && !record.Timestamp.IsZero() {
		out.Timestamp = FormatTimestamp(record.Timestamp)
	}
	if record.RevealExact {
		mrr := record.Metrics.MRR
		customers := record.Metrics.Customers
		out.Metrics = PublicMetrics{MRR: &mrr, Customers: &customers, Tier: record.Metrics.Tier}
		out.PublicKey = record.PublicKey
		out.Signature = record.Signature
		return out
	}
	tier, _ := Tier(record.Metrics.MRR)
	out.Metrics = PublicMetrics{Tier: tier}
	return out
}
