// Package rating loads the agency rating table used to weight clusters
// during ranking and to elect thread titles. The file format is one
// "<host> <double>" pair per line; a host absent from the table defaults
// to a rating of 1.0.
package rating

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Load parses the agency rating file format into a host → rating map.
// Blank lines and lines starting with '#' are skipped.
func Load(r io.Reader) (map[string]float64, error) {
	ratings := make(map[string]float64)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("rating file line %d: expected \"<host> <rating>\", got %q", lineNo, line)
		}

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("rating file line %d: parse rating: %w", lineNo, err)
		}

		ratings[strings.ToLower(fields[0])] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rating file: %w", err)
	}

	return ratings, nil
}

// For returns the configured rating for host, defaulting to 1.0 for any
// host not present in the table.
func For(ratings map[string]float64, host string) float64 {
	if ratings == nil {
		return 1.0
	}
	if r, ok := ratings[strings.ToLower(host)]; ok {
		return r
	}
	return 1.0
}
