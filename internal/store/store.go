// Package store holds the latest and prior quote per series key. It is the
// only mutable shared state in the core: one writer per key at a time, and
// readers of one shard are never blocked by writers of another.
package store

import (
	"hash/fnv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/pkg/models"
)

const shardCount = 64

// Store is a sharded in-memory snapshot store keyed by Quote.Key().
type Store struct {
	shards [shardCount]*shard
	logger *logrus.Entry
}

type shard struct {
	mu    sync.RWMutex
	snaps map[string]*models.Snapshot
}

// New creates an empty store.
func New(logger *logrus.Entry) *Store {
	s := &Store{logger: logger}
	for i := range s.shards {
		s.shards[i] = &shard{snaps: make(map[string]*models.Snapshot)}
	}
	return s
}

// Accept applies a quote to its series. Returns whether it was applied and
// the previous current quote for the key (nil on first write).
//
// A quote is stale when its ObservedAt is not after the stored latest, or its
// Sequence runs backwards within the same provider stream. Stale quotes are
// rejected silently: the effective history is order-independent across
// providers and order-dependent only within one provider's stream.
func (s *Store) Accept(q models.Quote) (applied bool, previous *models.Quote) {
	key := q.Key()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	snap, ok := sh.snaps[key]
	if !ok {
		sh.snaps[key] = &models.Snapshot{Current: &q}
		return true, nil
	}

	cur := snap.Current
	if !q.ObservedAt.After(cur.ObservedAt) || q.Sequence < cur.Sequence {
		return false, cur
	}

	// The line participates in the key, so a mismatch here means a corrupt
	// series. Treated as a defect: log and leave the history untouched.
	if !sameLine(cur.Line, q.Line) || cur.MarketType != q.MarketType {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"key":      key,
				"provider": q.Provider,
			}).Warn(models.ErrInvalidMarketTransition.Error())
		}
		return false, cur
	}

	prev := cur
	snap.Previous = prev
	snap.Current = &q
	return true, prev
}

// Latest returns the current quote for a key, or nil.
func (s *Store) Latest(key string) *models.Quote {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if snap, ok := sh.snaps[key]; ok {
		return snap.Current
	}
	return nil
}

// Pair returns the (previous, current) quotes for a key. Previous is nil
// until the second accepted quote.
func (s *Store) Pair(key string) (previous, current *models.Quote) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if snap, ok := sh.snaps[key]; ok {
		return snap.Previous, snap.Current
	}
	return nil, nil
}

// MarketQuotes returns the latest quote per provider and side for one market,
// identified by any member quote's MarketKey.
func (s *Store) MarketQuotes(marketKey string) []models.Quote {
	var out []models.Quote
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, snap := range sh.snaps {
			if snap.Current != nil && snap.Current.MarketKey() == marketKey {
				out = append(out, *snap.Current)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Keys returns all series keys currently held.
func (s *Store) Keys() []string {
	var out []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.snaps {
			out = append(out, k)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of series held.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.snaps)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func sameLine(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
