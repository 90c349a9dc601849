package proxy

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/sqlfleet/sqlfleet/common"
)

// PolicyCell holds the proxy's active routing policy, the only cross-request
// mutable state in the routing core. Loads and stores are atomic, so every
// routing decision observes one fully-formed policy value even while a
// policy change is in flight.
type PolicyCell struct {
	v *atomic.String
}

func NewPolicyCell() *PolicyCell {
	return &PolicyCell{v: atomic.NewString(string(common.PolicyDirectHit))}
}

func (c *PolicyCell) Get() common.Policy {
	return common.Policy(c.v.Load())
}

// Set validates and installs a new policy. On rejection the prior policy
// stays active.
func (c *PolicyCell) Set(p common.Policy) error {
	if !p.Valid() {
		return errors.Wrapf(common.ErrInvalidPolicy, "%q", p)
	}
	c.v.Store(string(p))
	return nil
}
