// Package models defines core data structures for users, registrations, and match results.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPartition is returned when a partition value is not one of the two known values.
var ErrInvalidPartition = errors.New("invalid partition")

// Partition is the binary attribute users are split by. Matches are always drawn from the opposite partition.
type Partition string

const (
	PartitionMale   Partition = "male"
	PartitionFemale Partition = "female"
)

// Partitions lists both partition values in a fixed order.
var Partitions = []Partition{PartitionMale, PartitionFemale}

// ParsePartition parses s case-insensitively, ignoring surrounding whitespace.
func ParsePartition(s string) (Partition, error) {
	switch p := Partition(strings.ToLower(strings.TrimSpace(s))); p {
	case PartitionMale, PartitionFemale:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPartition, s)
	}
}

// Valid reports whether p is one of the two partition values.
func (p Partition) Valid() bool {
	return p == PartitionMale || p == PartitionFemale
}

// Opposite returns the other partition.
func (p Partition) Opposite() Partition {
	if p == PartitionMale {
		return PartitionFemale
	}
	return PartitionMale
}

// Submission is the raw survey record kept alongside a registration.
type Submission struct {
	ID        string            `json:"id" db:"id"`
	UserID    string            `json:"rollno" db:"user_id"`
	Partition Partition         `json:"partition" db:"partition"`
	Responses map[string]string `json:"responses" db:"responses"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
