package rewrite

// Rename records one performed (or, in dry-run, planned) rename.
type Rename struct {
	From string
	To   string
}

// Stats accumulates counters over a single run. The walk is strictly
// sequential, so plain ints suffice.
type Stats struct {
	Visited      int // entries examined
	Skipped      int // names already compliant
	Renamed      int // renames performed, or planned in dry-run
	Collisions   int // rename destinations that were already taken
	Failed       int // entries left in place after an error
	ListFailures int // directory listings that failed

	Renames []Rename // in traversal order
}

func (s *Stats) record(from, to string) {
	s.Renames = append(s.Renames, Rename{From: from, To: to})
}
