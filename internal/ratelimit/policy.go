// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ManuGH/ratewait/internal/metrics"
)

// Tier labels used in metrics and errors.
const (
	TierGlobal = "global"
	TierClass  = "per_class"
	TierClient = "per_client"
)

// PolicyConfig holds tiered limiting configuration. A zero quota disables
// its tier.
type PolicyConfig struct {
	// Algorithm drives the global and per-class limiters. Per-client state
	// always runs GCRA because only its single-value state fits a Store.
	Algorithm string

	Global    Quota
	PerClient Quota
	Classes   map[string]Quota

	// KeyTTL bounds how long idle client state is retained. It never drops
	// below the per-client period.
	KeyTTL time.Duration
}

// Policy checks a request against the global limit, then its class limit,
// then the limit of the calling client. The first negative decision wins.
type Policy struct {
	cfg     PolicyConfig
	global  *DirectLimiter
	classes map[string]*DirectLimiter
	clients *KeyedLimiter
}

// NewPolicy builds every configured tier. Client state lives in store.
func NewPolicy(cfg PolicyConfig, store Store, clock Clock) (*Policy, error) {
	return NewPolicyFrom(nil, cfg, store, clock)
}

// NewPolicyFrom builds a policy that keeps every tier of prev whose quota
// and algorithm did not change, so reloads only reset what they touch.
// prev may be nil. Reused client tiers keep reading from prev's store.
func NewPolicyFrom(prev *Policy, cfg PolicyConfig, store Store, clock Clock) (*Policy, error) {
	if clock == nil {
		clock = SystemClock
	}
	p := &Policy{cfg: cfg, classes: make(map[string]*DirectLimiter, len(cfg.Classes))}
	sameAlg := prev != nil && prev.cfg.Algorithm == cfg.Algorithm

	if !cfg.Global.IsZero() {
		if sameAlg && prev.global != nil && prev.cfg.Global == cfg.Global {
			p.global = prev.global
		} else {
			l, err := NewDirectQuota(cfg.Algorithm, cfg.Global, WithName(TierGlobal), WithClock(clock))
			if err != nil {
				return nil, fmt.Errorf("global tier: %w", err)
			}
			p.global = l
		}
	}

	for class, q := range cfg.Classes {
		if q.IsZero() {
			continue
		}
		if sameAlg && prev.cfg.Classes[class] == q {
			if l, ok := prev.classes[class]; ok {
				p.classes[class] = l
				continue
			}
		}
		l, err := NewDirectQuota(cfg.Algorithm, q, WithName(TierClass+":"+class), WithClock(clock))
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", class, err)
		}
		p.classes[class] = l
	}

	if !cfg.PerClient.IsZero() {
		if prev != nil && prev.clients != nil && prev.cfg.PerClient == cfg.PerClient && prev.cfg.KeyTTL == cfg.KeyTTL {
			p.clients = prev.clients
		} else {
			k, err := NewKeyed(TierClient, cfg.PerClient, store, WithKeyedClock(clock), WithKeyTTL(cfg.KeyTTL))
			if err != nil {
				return nil, fmt.Errorf("client tier: %w", err)
			}
			p.clients = k
		}
	}
	return p, nil
}

// Classes returns the configured class names, sorted.
func (p *Policy) Classes() []string {
	out := make([]string, 0, len(p.classes))
	for c := range p.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Check tests one cell for client in class.
func (p *Policy) Check(ctx context.Context, client, class string) error {
	return p.CheckN(ctx, client, class, 1)
}

// CheckN tests n cells. Tiers that admitted the cells before a later tier
// refused keep them consumed.
func (p *Policy) CheckN(ctx context.Context, client, class string, n uint32) error {
	label := classLabel(class)

	if p.global != nil {
		if err := p.global.CheckN(n); err != nil {
			metrics.RecordRateLimitExceeded(TierGlobal, label)
			return err
		}
	}

	if l, ok := p.classes[class]; ok {
		if err := l.CheckN(n); err != nil {
			metrics.RecordRateLimitExceeded(TierClass, label)
			return err
		}
	}

	if p.clients != nil {
		if err := p.clients.CheckN(ctx, client, n); err != nil {
			metrics.RecordRateLimitExceeded(TierClient, label)
			return err
		}
	}
	return nil
}

// Wait blocks until every tier admitted one cell.
func (p *Policy) Wait(ctx context.Context, client, class string) error {
	return p.WaitN(ctx, client, class, 1)
}

// WaitN waits on each tier in turn.
func (p *Policy) WaitN(ctx context.Context, client, class string, n uint32) error {
	if p.global != nil {
		if err := p.global.WaitN(ctx, n); err != nil {
			return err
		}
	}
	if l, ok := p.classes[class]; ok {
		if err := l.WaitN(ctx, n); err != nil {
			return err
		}
	}
	if p.clients != nil {
		if err := p.clients.WaitN(ctx, client, n); err != nil {
			return err
		}
	}
	return nil
}

func classLabel(class string) string {
	if class == "" {
		return "default"
	}
	return class
}
