package engine

// Range is an inclusive byte interval assigned to one download worker.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

// Plan is the per-worker work split of a session.
type Plan struct {
	// Ranges holds one entry per ranged download worker.
	Ranges []Range

	// Unranged is the number of download workers that start without a
	// range. Only unbounded sessions without a known resource size use it.
	Unranged int

	// Quotas holds one entry per upload worker. Zero means unlimited.
	Quotas []int64
}

// Workers returns the number of workers the plan spawns per direction.
func (p Plan) Workers() (download, upload int) {
	return len(p.Ranges) + p.Unranged, len(p.Quotas)
}

// WithoutRanges returns p with every ranged download worker turned into an
// unranged one, for servers that advertise "Accept-Ranges: none".
func (p Plan) WithoutRanges() Plan {
	p.Unranged += len(p.Ranges)
	p.Ranges = nil
	return p
}

// SplitThreads divides threads between the active directions. With both
// directions active each gets threads/2; an odd remainder is dropped.
func SplitThreads(threads int, mode Mode) (download, upload int) {
	if threads < 0 {
		threads = 0
	}
	switch {
	case mode.Has(Download) && mode.Has(Upload):
		return threads / 2, threads / 2
	case mode.Has(Download):
		return threads, 0
	case mode.Has(Upload):
		return 0, threads
	}
	return 0, 0
}

// PlanRanges splits the effective download size into contiguous ranges.
// The effective size is min(target, hint) when hint is known, else target;
// an unbounded target uses hint alone. Ranges starting past the effective
// size are dropped, so fewer than threads ranges may be returned.
func PlanRanges(target, hint int64, threads int) []Range {
	effective := target
	if hint > 0 && (target == 0 || hint < target) {
		effective = hint
	}
	if effective <= 0 || threads <= 0 {
		return nil
	}

	per := ceilDiv(effective, int64(threads))
	ranges := make([]Range, 0, threads)
	for i := int64(0); i < int64(threads); i++ {
		start := i * per
		if start >= effective {
			break
		}
		ranges = append(ranges, Range{
			Start: start,
			End:   min(start+per-1, effective-1),
		})
	}
	return ranges
}

// PlanQuotas splits target into per-worker upload quotas. An unbounded
// target gives every worker an unlimited (zero) quota.
func PlanQuotas(target int64, threads int) []int64 {
	if threads <= 0 {
		return nil
	}
	if target == 0 {
		return make([]int64, threads)
	}

	per := ceilDiv(target, int64(threads))
	quotas := make([]int64, 0, threads)
	for i := int64(0); i < int64(threads); i++ {
		q := min(per, target-i*per)
		if q <= 0 {
			continue
		}
		quotas = append(quotas, q)
	}
	return quotas
}

// NewPlan computes the work split for a session.
func NewPlan(target, hint int64, threads int, mode Mode) Plan {
	down, up := SplitThreads(threads, mode)

	var plan Plan
	if down > 0 {
		plan.Ranges = PlanRanges(target, hint, down)
		if len(plan.Ranges) == 0 && target == 0 {
			plan.Unranged = down
		}
	}
	if up > 0 {
		plan.Quotas = PlanQuotas(target, up)
	}
	return plan
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
