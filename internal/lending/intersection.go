package lending

// CanonicalDocument is one entry of the upload checklist.
type CanonicalDocument struct {
	Key      DocumentKey `json:"key" yaml:"key"`
	Label    string      `json:"label" yaml:"label"`
	Quantity int         `json:"quantity" yaml:"quantity"`
}

func newCanonicalDocument(key DocumentKey, rawLabel string) CanonicalDocument {
	label := key.Label()
	if label == "" {
		label = rawLabel
	}
	return CanonicalDocument{Key: key, Label: label, Quantity: key.Quantity()}
}

// IntersectRequiredDocuments returns the documents required by every
// eligible product, in the order the first product lists them. Labels that
// normalize to the same key count once. No products means no requirements
// can be determined yet, which yields an empty list.
func IntersectRequiredDocuments(eligible []LenderProduct) []CanonicalDocument {
	result := []CanonicalDocument{}
	if len(eligible) == 0 {
		return result
	}

	first := eligible[0]
	order := make([]DocumentKey, 0, len(first.RequiredDocuments))
	rawLabels := make(map[DocumentKey]string, len(first.RequiredDocuments))
	for _, label := range first.RequiredDocuments {
		key := NormalizeDocument(label)
		if key == "" {
			continue
		}
		if _, seen := rawLabels[key]; seen {
			continue
		}
		rawLabels[key] = label
		order = append(order, key)
	}

	for _, p := range eligible[1:] {
		required := documentKeySet(p.RequiredDocuments)
		kept := order[:0]
		for _, key := range order {
			if _, ok := required[key]; ok {
				kept = append(kept, key)
			}
		}
		order = kept
		if len(order) == 0 {
			return result
		}
	}

	for _, key := range order {
		result = append(result, newCanonicalDocument(key, rawLabels[key]))
	}
	return result
}

// RequiredDocumentKeys returns the canonical keys a single product requires,
// de-duplicated, in listing order.
func RequiredDocumentKeys(p LenderProduct) []DocumentKey {
	seen := make(map[DocumentKey]struct{}, len(p.RequiredDocuments))
	keys := make([]DocumentKey, 0, len(p.RequiredDocuments))
	for _, label := range p.RequiredDocuments {
		key := NormalizeDocument(label)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func documentKeySet(labels []string) map[DocumentKey]struct{} {
	set := make(map[DocumentKey]struct{}, len(labels))
	for _, label := range labels {
		if key := NormalizeDocument(label); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}
