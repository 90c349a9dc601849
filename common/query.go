package common

import "strings"

var writePrefixes = []string{"insert", "update", "delete"}

// Classify derives a query's routing class from its leading keyword.
// This is a lexical prefix test, not a parser: statements that mutate
// without one of the three keywords (CREATE, ALTER, REPLACE, ...) classify
// as READ and may be routed to a replica under a load-balancing policy.
func Classify(query string) Kind {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range writePrefixes {
		if strings.HasPrefix(q, prefix) {
			return KindWrite
		}
	}
	return KindRead
}
