// Package report renders sync plans and outcomes for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer writes reports in one format.
type Printer struct {
	W      io.Writer
	Format string
}

type planJSON struct {
	Deletes []entryJSON `json:"deletes"`
	Puts    []entryJSON `json:"puts"`
}

type entryJSON struct {
	Key         string            `json:"key"`
	Label       *string           `json:"label"`
	Value       string            `json:"value"`
	Tags        map[string]string `json:"tags,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
}

type outcomeJSON struct {
	Status           string   `json:"status"`
	Summary          string   `json:"summary,omitempty"`
	AttemptedDeletes int      `json:"attempted_deletes"`
	AttemptedWrites  int      `json:"attempted_writes"`
	Failures         []string `json:"failures"`
}

type validationJSON struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func labelPtr(l kvs.Label) *string {
	if name, ok := l.Name(); ok {
		return &name
	}
	return nil
}

func identity(key string, label kvs.Label) string {
	if name, ok := label.Name(); ok {
		return fmt.Sprintf("%s [%s]", key, name)
	}
	return key
}

// Plan writes the operations a sync would perform.
func (p Printer) Plan(plan *kvs.SyncPlan) error {
	if p.Format == FormatJSON {
		out := planJSON{Deletes: []entryJSON{}, Puts: []entryJSON{}}
		for _, e := range plan.Deletes {
			out.Deletes = append(out.Deletes, entryJSON{Key: e.Key, Label: labelPtr(e.Label), Value: e.Value})
		}
		for _, e := range plan.Puts {
			out.Puts = append(out.Puts, entryJSON{
				Key:         e.Key,
				Label:       labelPtr(e.Label),
				Value:       e.Value,
				Tags:        e.Tags,
				ContentType: e.ContentType,
			})
		}
		return p.encode(out)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %d deletes, %d puts\n", len(plan.Deletes), len(plan.Puts))
	if len(plan.Deletes) > 0 {
		b.WriteString("\nDeletes:\n")
		for _, e := range plan.Deletes {
			fmt.Fprintf(&b, "  - %s\n", identity(e.Key, e.Label))
		}
	}
	if len(plan.Puts) > 0 {
		b.WriteString("\nPuts:\n")
		for _, e := range plan.Puts {
			fmt.Fprintf(&b, "  + %s = %s\n", identity(e.Key, e.Label), e.Value)
		}
	}
	_, err := io.WriteString(p.W, b.String())
	return err
}

// Outcome writes the result of an applied sync.
func (p Printer) Outcome(o *kvs.Outcome) error {
	if p.Format == FormatJSON {
		return p.encode(outcomeJSON{
			Status:           o.Status.String(),
			Summary:          o.Summary(),
			AttemptedDeletes: o.AttemptedDeletes,
			AttemptedWrites:  o.AttemptedWrites,
			Failures:         o.Messages(),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deletes: %d attempted, %d failed\n", o.AttemptedDeletes, len(o.FailedDeletes))
	fmt.Fprintf(&b, "Writes:  %d attempted, %d failed\n", o.AttemptedWrites, len(o.FailedWrites))
	if o.Succeeded() {
		b.WriteString("Configuration sync succeeded.\n")
	} else {
		b.WriteString(o.Summary() + "\n")
		for _, msg := range o.Messages() {
			b.WriteString("  " + msg + "\n")
		}
	}
	_, err := io.WriteString(p.W, b.String())
	return err
}

// Capacity writes how much of the store's total size the data would use.
// JSON reports leave it out.
func (p Printer) Capacity(stats kvs.DataStats, limits kvs.Limits) error {
	if p.Format == FormatJSON {
		return nil
	}
	if limits.MaxTotalBytes == 0 {
		_, err := fmt.Fprintf(p.W, "Data: %d keys, %d bytes\n", stats.NumKeys, stats.TotalBytes)
		return err
	}
	_, err := fmt.Fprintf(p.W, "Data: %d keys, %d / %d bytes (%.1f%%)\n",
		stats.NumKeys, stats.TotalBytes, limits.MaxTotalBytes,
		float64(stats.TotalBytes)/float64(limits.MaxTotalBytes)*100)
	return err
}

// ValidationErrors writes entry validation failures, one per line.
func (p Printer) ValidationErrors(errs []kvs.ValidationError) error {
	if p.Format == FormatJSON {
		out := make([]validationJSON, len(errs))
		for i, e := range errs {
			out[i] = validationJSON{Key: e.Key, Message: e.Message}
		}
		return p.encode(map[string]any{"validation_errors": out})
	}

	var b strings.Builder
	b.WriteString("Validation errors:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "  %s: %s\n", e.Key, e.Message)
	}
	_, err := io.WriteString(p.W, b.String())
	return err
}

func (p Printer) encode(v any) error {
	enc := json.NewEncoder(p.W)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
