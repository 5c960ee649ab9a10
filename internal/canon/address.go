package canon

import (
    "strings"
)

// Normalize trims and collapses whitespace in a zip/city pair. The pair is the
// cache identity for geocode lookups; region is intentionally not part of it,
// so two inputs differing only in region text share one cache entry.
func Normalize(zip, city string) (normZip, normCity string) {
    return collapseSpaces(zip), collapseSpaces(city)
}

// CacheKey builds the lookup key for a zip/city pair.
func CacheKey(zip, city string) string {
    z, c := Normalize(zip, city)
    return strings.ToLower(z + "|" + c)
}

// JoinAddress joins the non-empty parts of an address into the free-text form
// the geocoding service expects, e.g. "1010, Wien, Wien".
func JoinAddress(parts ...string) string {
    kept := make([]string, 0, len(parts))
    for _, p := range parts {
        p = collapseSpaces(p)
        if p != "" {
            kept = append(kept, p)
        }
    }
    return strings.Join(kept, ", ")
}

func collapseSpaces(s string) string {
    return strings.Join(strings.Fields(s), " ")
}
