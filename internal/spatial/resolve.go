package spatial

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Resolver composes the three join strategies into the standard
// measurement-to-building resolution: containment first, then the
// nearest parcel's largest building. Every ingestion source that
// carries a point uses this same chain.
type Resolver struct {
	Buildings *Index
	// Parcels enables the parcel fallback; nil limits resolution to
	// containment.
	Parcels *Index
}

// Resolve maps a survey point to one building. The bool is false when
// no strategy produces a match; the caller counts and skips the record.
func (r *Resolver) Resolve(pt orb.Point) (uuid.UUID, bool, error) {
	if hits := r.Buildings.ContainingPoint(pt); len(hits) > 0 {
		return hits[0].ID, true, nil
	}
	if r.Parcels == nil || r.Parcels.Len() == 0 {
		return uuid.Nil, false, nil
	}
	parcel, ok := r.Parcels.Nearest(pt)
	if !ok {
		return uuid.Nil, false, nil
	}
	best, ok, err := r.Buildings.LargestIntersecting(parcel.Polygon)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}
	return best.ID, true, nil
}
