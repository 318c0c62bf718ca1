package docstore

import (
	"errors"
	"time"

	"github.com/jacentio/arbor/rpc"
)

// Precondition guards a write on the current state of its target document.
// The backend fails the whole commit when any precondition does not hold.
type Precondition interface {
	apply(p *rpc.Precondition) error
}

// Exists requires the target document to exist.
var Exists Precondition = existsCondition(true)

// NotExists requires the target document to be absent.
var NotExists Precondition = existsCondition(false)

type existsCondition bool

func (e existsCondition) apply(p *rpc.Precondition) error {
	if p.Exists != nil || p.UpdateTime != nil {
		return errors.New("arbor: conflicting write preconditions")
	}
	b := bool(e)
	p.Exists = &b
	return nil
}

// LastUpdateTime requires the target document's update time to equal t
// exactly, as reported by an earlier read or write result. Stale handles
// fail the commit instead of clobbering a concurrent change.
func LastUpdateTime(t time.Time) Precondition {
	return updateTimeCondition(t.UTC())
}

type updateTimeCondition time.Time

func (u updateTimeCondition) apply(p *rpc.Precondition) error {
	if p.Exists != nil || p.UpdateTime != nil {
		return errors.New("arbor: conflicting write preconditions")
	}
	t := time.Time(u)
	p.UpdateTime = &t
	return nil
}

// combinePreconditions folds preconds into one wire precondition, nil when
// there are none.
func combinePreconditions(preconds []Precondition) (*rpc.Precondition, error) {
	if len(preconds) == 0 {
		return nil, nil
	}
	p := new(rpc.Precondition)
	for _, pc := range preconds {
		if err := pc.apply(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}
