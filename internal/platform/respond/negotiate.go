package respond

import (
	"strconv"
	"strings"
)

// mediaRange is one element of an Accept header.
type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. A missing subtype is read as "*",
// and an absent, malformed or out-of-range q is read as 1. When q repeats, the last one wins.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		params := strings.Split(part, ";")
		mt := strings.ToLower(strings.TrimSpace(params[0]))
		if mt == "" {
			continue
		}
		mr := mediaRange{typ: mt, subtype: "*", q: 1}
		if typ, sub, ok := strings.Cut(mt, "/"); ok {
			mr.typ, mr.subtype = typ, sub
		}
		for _, p := range params[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(key) != "q" {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || q < 0 || q > 1 {
				q = 1
			}
			mr.q = q
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// specificity ranks how closely a range names a subtype: problem-specific types outrank the base
// type, which outranks structured-suffix, type and full wildcards. -1 means no match.
func (mr mediaRange) specificity(subtype string) int {
	suffix := ""
	if i := strings.LastIndex(subtype, "+"); i >= 0 {
		suffix = subtype[i:]
	}
	switch {
	case mr.typ == "*" && mr.subtype == "*":
		return 0
	case mr.typ != "application":
		return -1
	case mr.subtype == subtype && strings.HasPrefix(subtype, "problem+"):
		return 4
	case mr.subtype == subtype:
		return 3
	case suffix != "" && mr.subtype == "*"+suffix:
		return 2
	case mr.subtype == "*":
		return 1
	}
	return -1
}

// preference is the quality a client assigns to a format, with the specificity that produced it.
type preference struct {
	q    float64
	rank int
}

// preferenceFor returns the best preference over the format's subtypes. For each subtype the most
// specific matching range decides its quality.
func preferenceFor(ranges []mediaRange, subtypes ...string) preference {
	best := preference{q: 0, rank: -1}
	for _, sub := range subtypes {
		cur := preference{q: 0, rank: -1}
		for _, mr := range ranges {
			if s := mr.specificity(sub); s > cur.rank {
				cur = preference{q: mr.q, rank: s}
			}
		}
		if cur.q > best.q || (cur.q == best.q && cur.rank > best.rank) {
			best = cur
		}
	}
	return best
}

// selectFormat reports whether the problem body should be CBOR. JSON is the default and wins
// ties; CBOR is chosen only when the client rates it strictly higher, by quality first and
// specificity second.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cborPref := preferenceFor(ranges, "cbor", "problem+cbor")
	if cborPref.q <= 0 {
		return false
	}
	jsonPref := preferenceFor(ranges, "json", "problem+json")
	if cborPref.q != jsonPref.q {
		return cborPref.q > jsonPref.q
	}
	return cborPref.rank > jsonPref.rank
}
