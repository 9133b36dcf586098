package enrich

import (
	"sync"

	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/pkg/anthropic"
)

// Credential is one explanation-service API key in rotation.
type Credential struct {
	Label  string
	Client anthropic.Client
}

// Pool is an ordered rotation of explanation-service credentials shared by
// all enrichment goroutines in a run. Rotation and ejection happen under one
// mutex; the API call itself runs outside the lock. A credential ejected on
// rate limit stays out for the remainder of the run.
type Pool struct {
	mu    sync.Mutex
	creds []*Credential
}

// NewPool builds a pool from anthropic clients in rotation order.
func NewPool(creds []*Credential) *Pool {
	return &Pool{creds: creds}
}

// NewPoolFromKeys builds a pool with one SDK client per API key.
func NewPoolFromKeys(keys []string) *Pool {
	creds := make([]*Credential, 0, len(keys))
	for i, key := range keys {
		creds = append(creds, &Credential{
			Label:  poolLabel(i),
			Client: anthropic.NewClient(key),
		})
	}
	return NewPool(creds)
}

func poolLabel(i int) string {
	return "key-" + string(rune('a'+i%26))
}

// Size returns the number of credentials currently in rotation.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// next pops the front credential and pushes it to the back, so the same
// credential is not reused mid-run unless the rotation wraps. Returns nil
// when the pool is empty.
func (p *Pool) next() *Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return nil
	}
	cred := p.creds[0]
	p.creds = append(p.creds[1:], cred)
	return cred
}

// eject removes a rate-limited credential from rotation for the rest of the
// run.
func (p *Pool) eject(cred *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.creds {
		if c == cred {
			p.creds = append(p.creds[:i], p.creds[i+1:]...)
			zap.L().Warn("enrich: credential rate limited, ejecting for this run",
				zap.String("credential", cred.Label),
				zap.Int("remaining", len(p.creds)),
			)
			return
		}
	}
}
