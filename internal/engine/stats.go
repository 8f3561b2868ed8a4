package engine

// Stats aggregates one column over its numeric-coercible, non-missing
// values. Min and Max are nil when no value qualified; Sum and Avg stay
// zero in that case.
type Stats struct {
	Column string   `json:"column"`
	Count  int64    `json:"count"`
	Sum    float64  `json:"sum"`
	Avg    float64  `json:"avg"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// aggregate computes column statistics over the view. Values that do not
// coerce to a number are skipped, never an error.
func aggregate(src View, column string) *Stats {
	st := &Stats{Column: column}
	for _, r := range src.Rows {
		n, ok := r.Get(column).Numeric()
		if !ok {
			continue
		}
		if st.Count == 0 {
			st.Min = new(float64)
			st.Max = new(float64)
			*st.Min = n
			*st.Max = n
		} else {
			if n < *st.Min {
				*st.Min = n
			}
			if n > *st.Max {
				*st.Max = n
			}
		}
		st.Count++
		st.Sum += n
	}
	if st.Count > 0 {
		st.Avg = st.Sum / float64(st.Count)
	}
	return st
}
