package badgemem

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

// Store keeps badge records in memory. Writes for one dedup key are
// serialized by a per-key mutex held across lookup, resolve and write.
type Store struct {
	mu        deadlock.RWMutex
	records   map[string]domain.StoredRecord
	byAccount map[string]string
	byLegacy  map[string]string

	locksMu deadlock.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   deadlock.Mutex
	refs int
}

func New() *Store {
	return &Store{
		records:   make(map[string]domain.StoredRecord),
		byAccount: make(map[string]string),
		byLegacy:  make(map[string]string),
		locks:     make(map[string]*keyLock),
	}
}

func (s *Store) Apply(ctx context.Context, key domain.DedupKey, fn usecase.ApplyFunc) (domain.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resolution{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	unlock := s.lockKey(key.String())
	defer unlock()

	var existing *domain.StoredRecord
	if record, ok := s.lookup(key); ok {
		existing = &record
	}
	res, err := fn(existing)
	if err != nil {
		return domain.Resolution{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record := cloneRecord(res.Record)
	switch res.Action {
	case domain.ResolutionInsert:
		record.ID = uuid.NewString()
		s.records[record.ID] = record
		s.index(key)[key.Value] = record.ID
	case domain.ResolutionUpdate:
		if existing == nil {
			return domain.Resolution{}, fmt.Errorf("update without existing record for %s", key)
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		s.records[record.ID] = record
	default:
		return domain.Resolution{}, fmt.Errorf("unknown resolution action %q", res.Action)
	}
	res.Record = cloneRecord(record)
	return res, nil
}

func (s *Store) ReplaceByDID(ctx context.Context, did string, fn func(existing domain.StoredRecord) (domain.StoredRecord, error)) (domain.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	current, err := s.GetByDID(ctx, did)
	if err != nil {
		return domain.StoredRecord{}, err
	}
	unlock := s.lockKey(dedupKeyOf(current).String())
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[current.ID]
	if !ok || existing.DID != did {
		return domain.StoredRecord{}, domain.ErrNotFound
	}
	updated, err := fn(cloneRecord(existing))
	if err != nil {
		return domain.StoredRecord{}, err
	}
	updated.ID = existing.ID
	updated.DID = existing.DID
	updated.AccountHash = existing.AccountHash
	updated.CreatedAt = existing.CreatedAt
	s.records[existing.ID] = cloneRecord(updated)
	return updated, nil
}

// GetByDID returns the most recently updated record carrying did.
func (s *Store) GetByDID(ctx context.Context, did string) (domain.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  domain.StoredRecord
		found bool
	)
	for _, record := range s.records {
		if record.DID != did {
			continue
		}
		if !found || record.UpdatedAt.After(best.UpdatedAt) {
			best = record
			found = true
		}
	}
	if !found {
		return domain.StoredRecord{}, domain.ErrNotFound
	}
	return cloneRecord(best), nil
}

func (s *Store) List(ctx context.Context) ([]domain.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	out := make([]domain.StoredRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, cloneRecord(record))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metrics.MRR != out[j].Metrics.MRR {
			return out[i].Metrics.MRR > out[j].Metrics.MRR
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) lookup(key domain.DedupKey) (domain.StoredRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.index(key)[key.Value]
	if !ok {
		return domain.StoredRecord{}, false
	}
	record, ok := s.records[id]
	if !ok {
		return domain.StoredRecord{}, false
	}
	return cloneRecord(record), true
}

func (s *Store) index(key domain.DedupKey) map[string]string {
	if key.Kind == domain.DedupByAccountHash {
		return s.byAccount
	}
	return s.byLegacy
}

func (s *Store) lockKey(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

func dedupKeyOf(record domain.StoredRecord) domain.DedupKey {
	if record.AccountHash != "" {
		return domain.DedupKey{Kind: domain.DedupByAccountHash, Value: record.AccountHash}
	}
	return domain.DedupKey{Kind: domain.DedupByDID, Value: record.DID}
}

func cloneRecord(record domain.StoredRecord) domain.StoredRecord {
	out := record
	out.JoinedGroups = append([]domain.GroupTag{}, record.JoinedGroups...)
	return out
}
