package kvs

import (
	"fmt"
	"strings"
)

// Limits are the size constraints a store places on entries. Zero fields
// are not checked.
type Limits struct {
	MaxKeyBytes   int
	MaxEntryBytes int
	MaxTotalBytes int

	// Sizer measures entries as the store holds them. Nil counts
	// key + value + label + content type + tags.
	Sizer Sizer
}

// Sizer reports the stored size of an entry's key and of the whole entry.
type Sizer interface {
	Size(e Entry) (keyBytes, entryBytes int)
}

func (l Limits) measure(e Entry) (keyBytes, entryBytes int) {
	if l.Sizer != nil {
		return l.Sizer.Size(e)
	}
	return len(e.Key), e.size()
}

// DefaultLimits suit a general-purpose configuration store.
var DefaultLimits = Limits{
	MaxKeyBytes:   10240,
	MaxEntryBytes: 10240,
}

// ValidationError describes a single constraint violation.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// DataStats holds summary size information for a Data set.
type DataStats struct {
	NumKeys    int
	TotalBytes int
}

// Stats returns the number of keys and total byte size of the data as
// measured under limits.
func (d *Data) Stats(limits Limits) DataStats {
	total := 0
	for _, e := range d.Entries {
		_, n := limits.measure(e)
		total += n
	}
	return DataStats{NumKeys: len(d.Entries), TotalBytes: total}
}

func (e Entry) size() int {
	n := len(e.Key) + len(e.Value) + len(e.Label.String()) + len(e.ContentType)
	for k, v := range e.Tags {
		n += len(k) + len(v)
	}
	return n
}

// Validate checks key rules and the given limits. Returns nil if valid.
func (d *Data) Validate(limits Limits) []ValidationError {
	var errs []ValidationError
	totalSize := 0

	for _, e := range d.Entries {
		switch {
		case e.Key == "":
			errs = append(errs, ValidationError{Key: "(empty)", Message: "key must not be empty"})
		case e.Key == "." || e.Key == "..":
			errs = append(errs, ValidationError{Key: e.Key, Message: "key must not be '.' or '..'"})
		case strings.Contains(e.Key, "%"):
			errs = append(errs, ValidationError{Key: e.Key, Message: "key must not contain '%'"})
		}

		keySize, entrySize := limits.measure(e)

		if limits.MaxKeyBytes > 0 && keySize > limits.MaxKeyBytes {
			errs = append(errs, ValidationError{
				Key:     e.Key,
				Message: fmt.Sprintf("key exceeds %d bytes (%d bytes)", limits.MaxKeyBytes, keySize),
			})
		}

		if limits.MaxEntryBytes > 0 && entrySize > limits.MaxEntryBytes {
			errs = append(errs, ValidationError{
				Key:     e.Key,
				Message: fmt.Sprintf("entry exceeds %d bytes (%d bytes)", limits.MaxEntryBytes, entrySize),
			})
		}

		totalSize += entrySize
	}

	if limits.MaxTotalBytes > 0 && totalSize > limits.MaxTotalBytes {
		errs = append(errs, ValidationError{
			Key:     "(total)",
			Message: fmt.Sprintf("total data exceeds %d bytes (%d bytes)", limits.MaxTotalBytes, totalSize),
		})
	}

	return errs
}
