package domain

// ChangeState is the outcome of comparing one unit (lineup, station
// membership, schedule day, program) against its cached counterpart.
// Every reconciliation stage reduces its units to one of these four
// states before acting, which keeps the stages uniform.
type ChangeState int

const (
	// ChangeUnchanged means the cached digest/timestamp matches remote.
	ChangeUnchanged ChangeState = iota
	// ChangeChanged means the unit exists on both sides but differs.
	ChangeChanged
	// ChangeNew means the unit exists remotely but not in the cache.
	ChangeNew
	// ChangeGone means the unit exists in the cache but not remotely.
	ChangeGone
)

func (c ChangeState) String() string {
	switch c {
	case ChangeUnchanged:
		return "unchanged"
	case ChangeChanged:
		return "changed"
	case ChangeNew:
		return "new"
	case ChangeGone:
		return "gone"
	}
	return "unknown"
}
