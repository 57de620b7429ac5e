package analysis

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

// ErrNoCredentials is returned when no usable API key is configured.
var ErrNoCredentials = errors.New("analysis: no api credentials configured")

// Strategy names accepted by StrategyByName.
const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round_robin"
)

// Strategy picks an index in [0, n).
type Strategy interface {
	Pick(n int) int
}

// RandomStrategy picks uniformly at random.
type RandomStrategy struct{}

// Pick implements Strategy.
func (RandomStrategy) Pick(n int) int {
	return rand.IntN(n)
}

// RoundRobinStrategy cycles through keys in configuration order.
type RoundRobinStrategy struct {
	next atomic.Uint64
}

// Pick implements Strategy.
func (s *RoundRobinStrategy) Pick(n int) int {
	return int((s.next.Add(1) - 1) % uint64(n))
}

// StrategyByName resolves a configured strategy name. Empty means random.
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyRandom:
		return RandomStrategy{}, nil
	case StrategyRoundRobin, "round-robin", "roundrobin":
		return &RoundRobinStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown key strategy %q", name)
	}
}

// CredentialPool holds one or more API keys and hands them out by Strategy.
type CredentialPool struct {
	keys     []string
	strategy Strategy
}

// NewCredentialPool trims keys, drops blanks and returns ErrNoCredentials when
// nothing usable remains.
func NewCredentialPool(keys []string, strategy Strategy) (*CredentialPool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoCredentials
	}
	if strategy == nil {
		strategy = RandomStrategy{}
	}
	return &CredentialPool{keys: cleaned, strategy: strategy}, nil
}

// Next returns the key chosen by the pool's strategy.
func (p *CredentialPool) Next() string {
	return p.keys[p.strategy.Pick(len(p.keys))]
}

// Len reports how many keys the pool holds.
func (p *CredentialPool) Len() int {
	return len(p.keys)
}
