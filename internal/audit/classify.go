package audit

import "strings"

// ClassifyQueryType buckets a query by apparent intent without
// recording its content, mirroring the source privacy module's
// _classify_query_type. Used to enrich SEARCH audit events with a
// non-identifying signal.
func ClassifyQueryType(query string) string {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "monto", "cuánto", "cuanto", "precio", "costo"):
		return "financial"
	case containsAny(lower, "procedimiento", "cómo", "como", "pasos"):
		return "procedural"
	case containsAny(lower, "quién", "quien", "responsable", "encargado"):
		return "responsibility"
	case containsAny(lower, "cuándo", "cuando", "plazo", "fecha", "tiempo"):
		return "temporal"
	case containsAny(lower, "dónde", "donde", "lugar", "ubicación", "ubicacion"):
		return "location"
	default:
		return "general"
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
