package recon

import "strings"

// IdentifierLength is the length of a normalized compound identifier.
const IdentifierLength = 22

// NormalizeIdentifier returns the first IdentifierLength characters of raw.
// Shorter input is returned unchanged; see ValidIdentifier.
func NormalizeIdentifier(raw string) string {
	if len(raw) <= IdentifierLength {
		return raw
	}
	return raw[:IdentifierLength]
}

// ValidIdentifier reports whether id has the normalized length.
func ValidIdentifier(id string) bool { return len(id) == IdentifierLength }

// NormalizeDate swaps underscore field separators for hyphens. It does not
// validate the result.
func NormalizeDate(raw string) string { return strings.ReplaceAll(raw, "_", "-") }

// NormalizeTracking returns a copy of t with every identifier normalized.
func NormalizeTracking(t TrackingTable) TrackingTable {
	out := TrackingTable{
		Header:  append([]string(nil), t.Header...),
		Records: make([]TrackingRecord, len(t.Records)),
	}
	for i, rec := range t.Records {
		rec.Identifier = NormalizeIdentifier(rec.Identifier)
		out.Records[i] = rec
	}
	return out
}

// NormalizeResults returns a copy of results with every run date normalized.
func NormalizeResults(results []AssayResult) []AssayResult {
	out := make([]AssayResult, len(results))
	for i, r := range results {
		r.Date = NormalizeDate(r.Date)
		out[i] = r
	}
	return out
}

// ForProtein keeps the results recorded against proteinID. The project code is
// filtered by the database query and is not compared here.
func ForProtein(results []AssayResult, proteinID string) []AssayResult {
	out := make([]AssayResult, 0, len(results))
	for _, r := range results {
		if r.ProteinID == proteinID {
			out = append(out, r)
		}
	}
	return out
}
