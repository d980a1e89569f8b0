package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIntList parses "30, 20,10" into percentages. An empty string is an
// empty set, which disables warnings for that direction.
func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}

	fields := strings.Split(s, ",")
	ret := make([]int, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(field), "%"))
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid percentage %q: %v", field, err)
		}
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("percentage %d out of range 0-100", v)
		}
		ret = append(ret, v)
	}
	return ret, nil
}

func formatIntList(values []int) string {
	if len(values) == 0 {
		return "none"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v) + "%"
	}
	return strings.Join(parts, ", ")
}
