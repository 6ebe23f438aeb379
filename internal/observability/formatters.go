// Package observability provides formatted output utilities for the watch command.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-topics/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStatus writes a one-line summary of a snapshot.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStatus(snap types.ActiveGenerations) {
	fmt.Fprintf(p.out, "generating: experiences=%s topics=%s\n",
		idList(snap.GeneratingAllExperienceIDs), idList(snap.RegeneratingTopicIDs))
}

// PrintActiveGenerations outputs a boxed summary of the in-flight jobs.
func (p *Printer) PrintActiveGenerations(snap types.ActiveGenerations) {
	var sb strings.Builder

	writeIDs := func(label string, ids []int64) {
		sb.WriteString(fmt.Sprintf("%s (%d):\n", label, len(ids)))
		count := min(len(ids), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %d\n", ids[i]))
		}
		if len(ids) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(ids)-maxItemsToShow))
		}
	}

	writeIDs("Generating all topics for experiences", snap.GeneratingAllExperienceIDs)
	sb.WriteString("\n")
	writeIDs("Regenerating topics", snap.RegeneratingTopicIDs)

	p.printBox("ACTIVE GENERATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSettled reports that no job remains.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSettled() {
	fmt.Fprintln(p.out, "all generations settled")
}

// PrintIdle reports that nothing was running when the watch began.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintIdle() {
	fmt.Fprintln(p.out, "no generations in progress")
}

func idList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
