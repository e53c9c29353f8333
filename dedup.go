package liveboard2sqlite

// Dedupe collapses a batch to at most one departure per identity key
// (station, train ID, departure time). When entries share a key the one
// latest in input order wins, overwriting earlier entries in place.
func Dedupe(batch []Departure) []Departure {
	if len(batch) == 0 {
		return nil
	}

	out := make([]Departure, 0, len(batch))
	seen := make(map[DepartureKey]int, len(batch))
	for _, d := range batch {
		key := d.Key()
		if i, ok := seen[key]; ok {
			out[i] = d
			continue
		}
		seen[key] = len(out)
		out = append(out, d)
	}
	return out
}
