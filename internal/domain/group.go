package domain

type GroupTag string

const (
	GroupExactNumbers GroupTag = "exact-numbers"
	GroupTenMRRClub   GroupTag = "10-mrr-club"
)

var knownGroups = []GroupTag{GroupExactNumbers, GroupTenMRRClub}

func KnownGroups() []GroupTag {
	return append([]GroupTag(nil), knownGroups...)
}

func (g GroupTag) Valid() bool {
	for _, known := range knownGroups {
		if g == known {
			return true
		}
	}
	return false
}

// ListedIn reports whether a record is displayed on a group's listing. Joining
// a group and being listed in it are separate: the exact-numbers board only
// shows members who chose to reveal their figures.
func (g GroupTag) ListedIn(record StoredRecord) bool {
	switch g {
	case GroupExactNumbers:
		return record.RevealExact && record.Metrics.MRR > 0
	case GroupTenMRRClub:
		return record.Metrics.MRR >= 10
	default:
		return false
	}
}
