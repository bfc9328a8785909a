package domain

// PolicyInput is evaluated by the group admission policy before a submission
// that joins a group is resolved.
type PolicyInput struct {
	Group       GroupTag      `json:"group"`
	Metrics     PolicyMetrics `json:"metrics"`
	RevealExact bool          `json:"reveal_exact"`
}

type PolicyMetrics struct {
	MRR       uint64 `json:"mrr"`
	Customers uint64 `json:"customers"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	PolicyHash string
	Result     PolicyResult
}
