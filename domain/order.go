package domain

import (
	"fmt"
	"strings"
)

// WeightOrder tells which end of the priority scale is shown first in a column.
type WeightOrder string

const (
	// WeightDescending shows higher weights first.
	WeightDescending WeightOrder = "descending"
	// WeightAscending shows lower weights first.
	WeightAscending WeightOrder = "ascending"
)

// ParseWeightOrder accepts "descending"/"desc" and "ascending"/"asc". An
// empty value yields WeightDescending.
func ParseWeightOrder(s string) (WeightOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", string(WeightDescending):
		return WeightDescending, nil
	case "asc", string(WeightAscending):
		return WeightAscending, nil
	default:
		return "", fmt.Errorf("unknown weight order %q", s)
	}
}

// Rank maps a weight onto a scale where larger always sorts first.
func (o WeightOrder) Rank(weight int) int {
	if o == WeightAscending {
		return -weight
	}
	return weight
}

// UnmarshalText implements encoding.TextUnmarshaler so the order can be read
// straight from YAML and environment values.
func (o *WeightOrder) UnmarshalText(text []byte) error {
	v, err := ParseWeightOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
