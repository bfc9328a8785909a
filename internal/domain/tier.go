package domain

type tierStep struct {
	min   uint64
	label string
}

// Descending so the first match is the highest tier reached.
var tierSteps = []tierStep{
	{min: 1_000_000, label: "$1M+"},
	{min: 100_000, label: "$100k+"},
	{min: 10_000, label: "$10k+"},
	{min: 1_000, label: "$1k+"},
	{min: 1, label: "$1+"},
}

// Tier maps a monthly recurring revenue in whole currency units to its public
// label. Revenue below 1 is unclassified and reported with ok=false.
func Tier(mrr uint64) (label string, ok bool) {
	for _, step := range tierSteps {
		if mrr >= step.min {
			return step.label, true
		}
	}
	return "", false
}

// TierLabels lists every label from lowest to highest.
func TierLabels() []string {
	out := make([]string, 0, len(tierSteps))
	for i := len(tierSteps) - 1; i >= 0; i-- {
		out = append(out, tierSteps[i].label)
	}
	return out
}
