package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type QueryBadges struct {
	Badges BadgeRepository
}

// List returns public projections ordered by revenue, highest first. A
// non-empty group narrows the list to that group's members who meet its
// display rule.
func (q *QueryBadges) List(ctx context.Context, group domain.GroupTag) ([]domain.PublicBadge, error) {
	if group != "" && !group.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	records, err := q.Badges.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.StoredRecord, 0, len(records))
	for _, record := range records {
		if group != "" && !(record.HasGroup(group) && group.ListedIn(record)) {
			continue
		}
		filtered = append(filtered, record)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Metrics.MRR > filtered[j].Metrics.MRR
	})
	out := make([]domain.PublicBadge, 0, len(filtered))
	for _, record := range filtered {
		out = append(out, domain.Project(record))
	}
	return out, nil
}

func (q *QueryBadges) Get(ctx context.Context, did string) (domain.PublicBadge, error) {
	record, err := q.Badges.GetByDID(ctx, did)
	if err != nil {
		return domain.PublicBadge{}, err
	}
	return domain.Project(record), nil
}
