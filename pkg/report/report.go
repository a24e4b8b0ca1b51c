// Package report renders partition summaries, verify reports and catalog
// statistics as text or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"ttscorpus/pkg/audio"
	"ttscorpus/pkg/catalog"
	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/partition"
	"ttscorpus/pkg/verify"
)

// Formatter is the interface for output formatters.
type Formatter interface {
	// WriteSummary writes the result of a partition run.
	WriteSummary(s *partition.Summary) error

	// WriteReport writes the result of a verify run.
	WriteReport(r *verify.Report) error

	// WriteStats writes the counts and failures of a recorded run.
	WriteStats(st *catalog.Stats) error
}

// New returns the formatter for format ("text" or "json").
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewTextFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

// JSONFormatter writes indented JSON documents.
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return &JSONFormatter{encoder: encoder}
}

func (j *JSONFormatter) WriteSummary(s *partition.Summary) error {
	return j.encoder.Encode(struct {
		*partition.Summary
		RealizedRatio float64 `json:"realized_ratio"`
	}{s, s.RealizedRatio()})
}

func (j *JSONFormatter) WriteReport(r *verify.Report) error {
	return j.encoder.Encode(r)
}

func (j *JSONFormatter) WriteStats(st *catalog.Stats) error {
	return j.encoder.Encode(st)
}

// TextFormatter writes human-readable output.
type TextFormatter struct {
	w io.Writer
}

// NewTextFormatter creates a new plain text formatter.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{w: w}
}

func (t *TextFormatter) WriteSummary(s *partition.Summary) error {
	b := &strings.Builder{}

	labels := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		labels[i] = l.Label
	}
	fmt.Fprintf(b, "Labels: [%s]\n", strings.Join(labels, " "))
	for _, l := range s.Labels {
		fmt.Fprintf(b, "- %s: %d train, %d test", l.Label, l.Train, l.Test)
		if skipped := l.Total - l.TrainWritten - l.TestWritten; skipped > 0 {
			fmt.Fprintf(b, " (%d skipped)", skipped)
		}
		b.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(b, "\nFailures (%d):\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(b, "  %-5s %-40s %-11s %s\n", f.Split, f.Source, f.Kind, f.Message)
		}
	}
	writeWarnings(b, s.Warnings)

	fmt.Fprintf(b, "\nRun %s seed %d\n", s.RunID, s.Seed)
	fmt.Fprintf(b, "Ratio %.2f requested, %.2f realized; profile %s\n", s.TrainRatio, s.RealizedRatio(), s.Profile)
	fmt.Fprintf(b, "Done: %s train, %s test written to %s in %s\n",
		humanize.Comma(int64(s.Written(corpus.Train))),
		humanize.Comma(int64(s.Written(corpus.Test))),
		s.OutputRoot,
		s.Duration.Round(time.Millisecond))

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextFormatter) WriteReport(r *verify.Report) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Verifying %s against %s\n", r.Root, r.Profile)

	for _, s := range r.Splits {
		fmt.Fprintf(b, "\n--- %s ---\n", strings.ToUpper(string(s.Split)))
		for _, f := range s.Files {
			if f.Error != "" {
				fmt.Fprintf(b, "%-40s | UNREADABLE: %s\n", f.Path, f.Error)
				continue
			}
			fmt.Fprintf(b, "%-40s | %d Hz %-5s | %-6s %s\n",
				f.Path, f.SampleRate, verdict(f.SampleRateOK), audio.ChannelName(f.Channels), verdict(f.MonoOK))
		}
		if n := len(s.MissingLabels); n > 0 {
			fmt.Fprintf(b, "! %d .wav without .lab\n", n)
			writeList(b, s.MissingLabels)
		}
		if n := len(s.OrphanLabels); n > 0 {
			fmt.Fprintf(b, "! %d .lab without .wav\n", n)
			writeList(b, s.OrphanLabels)
		}
		writeWarnings(b, s.Warnings)
	}

	if r.HasWarnings() {
		b.WriteString("\nCompleted with warnings.\n")
	} else {
		b.WriteString("\nCorpus OK.\n")
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextFormatter) WriteStats(st *catalog.Stats) error {
	if st == nil || st.Run == nil {
		_, err := io.WriteString(t.w, "No runs recorded.\n")
		return err
	}
	run := st.Run

	fmt.Fprintf(t.w, "Run %s (%s), seed %d, ratio %.2f\n", run.ID, humanize.Time(run.FinishedAt), run.Seed, run.TrainRatio)
	fmt.Fprintf(t.w, "%s -> %s\n\n", run.SourceRoot, run.OutputRoot)

	type row struct{ train, test int }
	var order []string
	rows := map[string]*row{}
	for _, c := range st.Counts {
		r, ok := rows[c.Label]
		if !ok {
			r = &row{}
			rows[c.Label] = r
			order = append(order, c.Label)
		}
		if c.Split == corpus.Train {
			r.train += c.Files
		} else {
			r.test += c.Files
		}
	}

	tw := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "LABEL\tTRAIN\tTEST\tTOTAL\t")
	var train, test int
	for _, label := range order {
		r := rows[label]
		train += r.train
		test += r.test
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", label, r.train, r.test, r.train+r.test)
	}
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", "all", train, test, train+test)
	if err := tw.Flush(); err != nil {
		return err
	}

	b := &strings.Builder{}
	if len(st.Failures) > 0 {
		fmt.Fprintf(b, "\nFailures (%d):\n", len(st.Failures))
		for _, f := range st.Failures {
			fmt.Fprintf(b, "  %-5s %-40s %-11s %s\n", f.Split, f.Source, f.Kind, f.Message)
		}
	}
	if len(st.Entries) > 0 {
		fmt.Fprintf(b, "\nEntries (%s):\n", humanize.Comma(int64(len(st.Entries))))
		for _, e := range st.Entries {
			fmt.Fprintf(b, "  %-5s %-40s <- %s (%d Hz %s, %.2fs)\n",
				e.Split, e.Label+"/"+e.Stem, e.Source, e.SourceRate, audio.ChannelName(e.SourceChannels), e.Duration)
		}
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func verdict(ok bool) string {
	if ok {
		return "OK"
	}
	return "WRONG"
}

func writeList(b *strings.Builder, items []string) {
	for _, it := range items {
		fmt.Fprintf(b, "    %s\n", it)
	}
}

func writeWarnings(b *strings.Builder, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(b, "! %s\n", w)
	}
}
