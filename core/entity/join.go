package entity

// Join attaches two tables via a foreign key, in either polarity (spec.md
// §3.2). It is derived, not stored: DirectJoin and ReverseJoin are computed
// on demand from a ForeignKey.
type Join interface {
	Origin() *Table
	Target() *Table
	// Columns returns the ordered (origin column, target column) pairs
	// the join equates.
	Columns() [][2]*Column
	IsExpanding() bool
	IsContracting() bool
	// Reverse returns the join with origin/target swapped; per spec.md §8
	// DirectJoin(fk).Reverse() == ReverseJoin(fk) and vice versa.
	Reverse() Join
	ForeignKey() *ForeignKey
}

// DirectJoin follows a foreign key from its origin to its target.
type DirectJoin struct {
	FK *ForeignKey
}

func NewDirectJoin(fk *ForeignKey) DirectJoin { return DirectJoin{FK: fk} }

func (j DirectJoin) Origin() *Table     { return j.FK.Origin }
func (j DirectJoin) Target() *Table     { return j.FK.Target }
func (j DirectJoin) ForeignKey() *ForeignKey { return j.FK }

func (j DirectJoin) Columns() [][2]*Column {
	pairs := make([][2]*Column, len(j.FK.OriginColumns))
	for i := range j.FK.OriginColumns {
		pairs[i] = [2]*Column{j.FK.OriginColumns[i], j.FK.TargetColumns[i]}
	}
	return pairs
}

// IsExpanding: every origin row has at least one matching target row, iff
// the FK is total and every origin column is non-nullable.
func (j DirectJoin) IsExpanding() bool {
	return j.FK.IsTotal()
}

// IsContracting: at most one matching target row, iff the target columns
// cover one of the target table's unique keys.
func (j DirectJoin) IsContracting() bool {
	for _, uk := range j.FK.Target.UniqueKeys() {
		if uk.CoversColumns(j.FK.TargetColumns) {
			return true
		}
	}
	return false
}

func (j DirectJoin) Reverse() Join { return ReverseJoin{FK: j.FK} }

// ReverseJoin follows a foreign key from its target back to its origin.
type ReverseJoin struct {
	FK *ForeignKey
}

func NewReverseJoin(fk *ForeignKey) ReverseJoin { return ReverseJoin{FK: fk} }

func (j ReverseJoin) Origin() *Table     { return j.FK.Target }
func (j ReverseJoin) Target() *Table     { return j.FK.Origin }
func (j ReverseJoin) ForeignKey() *ForeignKey { return j.FK }

func (j ReverseJoin) Columns() [][2]*Column {
	pairs := make([][2]*Column, len(j.FK.OriginColumns))
	for i := range j.FK.OriginColumns {
		pairs[i] = [2]*Column{j.FK.TargetColumns[i], j.FK.OriginColumns[i]}
	}
	return pairs
}

// IsExpanding is unknown for a reverse join (there is no guarantee every
// target row has a referring origin row), conservatively false.
func (j ReverseJoin) IsExpanding() bool { return false }

// IsContracting: at most one referring row, iff the origin columns cover
// one of the origin table's unique keys.
func (j ReverseJoin) IsContracting() bool {
	for _, uk := range j.FK.Origin.UniqueKeys() {
		if uk.CoversColumns(j.FK.OriginColumns) {
			return true
		}
	}
	return false
}

func (j ReverseJoin) Reverse() Join { return DirectJoin{FK: j.FK} }
