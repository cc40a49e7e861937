package domain

// Metadata is the free-form key-value bag carried by tasks. Updates merge by
// shallow key overwrite so unrelated keys survive repeated partial updates.
type Metadata map[string]any

// Merge returns a copy of m with keys from overlay applied on top. Neither
// input is mutated. A nil receiver with a nil overlay yields nil.
func (m Metadata) Merge(overlay Metadata) Metadata {
	if len(overlay) == 0 {
		return m.clone()
	}
	merged := make(Metadata, len(m)+len(overlay))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
