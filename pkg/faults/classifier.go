package faults

// MatchResult is the verdict for one signature over one artifact set.
type MatchResult struct {
	SignatureID string
	Detected    bool
	Evidence    []*TestRecord
}

// Classify evaluates every signature against every record. Matching is
// endpoint-scoped: a record can only count for signatures whose endpoint
// set contains its request line. When the response names an eligible fault
// through faultName, the record is attributed to that signature alone;
// otherwise it counts for every eligible signature. Records are processed
// in load order, results come back in signature table order, so repeated
// runs over the same artifact set yield identical output.
func Classify(sigs []Signature, records []*TestRecord) []MatchResult {

	byID := make(map[string]int, len(sigs))
	for i, s := range sigs {
		byID[s.ID] = i
	}

	evidence := make([][]*TestRecord, len(sigs))

	for _, r := range records {

		var eligible []int
		for i := range sigs {
			if sigs[i].AppliesTo(r.Method, r.Path) {
				eligible = append(eligible, i)
			}
		}
		if len(eligible) == 0 || !r.Suspicious() {
			continue
		}

		if name := r.FaultName(); name != "" {
			if i, ok := byID[name]; ok && containsIndex(eligible, i) {
				evidence[i] = append(evidence[i], r)
				continue
			}
		}

		for _, i := range eligible {
			evidence[i] = append(evidence[i], r)
		}

	}

	results := make([]MatchResult, len(sigs))
	for i, s := range sigs {
		results[i] = MatchResult{
			SignatureID: s.ID,
			Detected:    len(evidence[i]) > 0,
			Evidence:    evidence[i],
		}
	}

	return results
}

func containsIndex(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
