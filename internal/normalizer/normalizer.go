// Package normalizer maps heterogeneous provider payloads into canonical
// quotes. Normalization is pure: callers own persistence.
package normalizer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/pkg/models"
)

// Adapter parses one provider family's payload shape into canonical quotes.
// Soft errors describe malformed games that were dropped; the fatal error is
// reserved for a payload that cannot be parsed at all.
type Adapter interface {
	Name() string
	Parse(provider string, payload []byte, receivedAt time.Time) (quotes []models.Quote, soft []error, err error)
}

// Normalizer routes payloads to registered adapters and stamps sequence
// numbers so the store can order quotes within one provider's stream.
type Normalizer struct {
	mu       sync.RWMutex
	adapters map[string]Adapter

	seqMu sync.Mutex
	seqs  map[string]*int64 // provider -> counter

	logger *logrus.Entry
}

// New creates a normalizer with no adapters registered.
func New(logger *logrus.Entry) *Normalizer {
	return &Normalizer{
		adapters: make(map[string]Adapter),
		seqs:     make(map[string]*int64),
		logger:   logger,
	}
}

// Register adds an adapter. Registering the same name twice is an error.
func (n *Normalizer) Register(a Adapter) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.adapters[a.Name()]; exists {
		return fmt.Errorf("adapter %q already registered", a.Name())
	}
	n.adapters[a.Name()] = a
	return nil
}

// Normalize converts a raw provider payload into canonical quotes. A malformed
// game inside the payload is dropped and logged; it never aborts the rest of
// the payload. Only a fully unparsable payload returns an error.
func (n *Normalizer) Normalize(provider, adapterName string, payload []byte) ([]models.Quote, error) {
	n.mu.RLock()
	adapter, ok := n.adapters[adapterName]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for %q", models.ErrMalformedPayload, adapterName)
	}

	quotes, soft, err := adapter.Parse(provider, payload, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedPayload, provider, err)
	}

	for _, serr := range soft {
		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{
				"provider": provider,
				"adapter":  adapterName,
			}).WithError(serr).Warn("dropped malformed game")
		}
	}

	seq := n.nextSequence(provider)
	out := quotes[:0]
	for _, q := range quotes {
		q.Sequence = seq
		if verr := q.Validate(); verr != nil {
			if n.logger != nil {
				n.logger.WithField("provider", provider).WithError(verr).Warn("dropped invalid quote")
			}
			continue
		}
		out = append(out, q)
	}

	return out, nil
}

// nextSequence increments the per-provider counter. Quotes from the same
// payload share one sequence number; ObservedAt orders within it.
func (n *Normalizer) nextSequence(provider string) int64 {
	n.seqMu.Lock()
	ctr, ok := n.seqs[provider]
	if !ok {
		ctr = new(int64)
		n.seqs[provider] = ctr
	}
	n.seqMu.Unlock()
	return atomic.AddInt64(ctr, 1)
}
