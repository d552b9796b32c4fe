//
// Copyright (c) 2020-2025 Markku Rossi
//
// All rights reserved.
//

package preproc

import (
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/tabulate"
)

// FileSize specifies a size in bytes.
type FileSize uint64

func (s FileSize) String() string {
	if s > 1000*1000*1000*1000 {
		return fmt.Sprintf("%dTB", s/(1000*1000*1000*1000))
	} else if s > 1000*1000*1000 {
		return fmt.Sprintf("%dGB", s/(1000*1000*1000))
	} else if s > 1000*1000 {
		return fmt.Sprintf("%dMB", s/(1000*1000))
	} else if s > 1000 {
		return fmt.Sprintf("%dkB", s/1000)
	} else {
		return fmt.Sprintf("%dB", s)
	}
}

// Timing records timing samples and renders a profiling report.
type Timing struct {
	Start   time.Time
	Samples []*Sample
}

// NewTiming creates a new Timing instance.
func NewTiming() *Timing {
	return &Timing{
		Start: time.Now(),
	}
}

// Sample adds a timing sample for count produced items. The sample
// starts where the previous sample ended.
func (t *Timing) Sample(label string, count int, xfer uint64) *Sample {
	start := t.Start
	if len(t.Samples) > 0 {
		start = t.Samples[len(t.Samples)-1].End
	}
	sample := &Sample{
		Label: label,
		Start: start,
		End:   time.Now(),
		Count: count,
		Xfer:  xfer,
	}
	t.Samples = append(t.Samples, sample)
	return sample
}

// Print prints the profiling report to w.
func (t *Timing) Print(w io.Writer, stats p2p.IOStats) {
	if len(t.Samples) == 0 {
		return
	}

	var sent, received, flushed uint64
	if stats.Sent != nil {
		sent = stats.Sent.Load()
		received = stats.Recvd.Load()
		flushed = stats.Flushed.Load()
	}

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Op").SetAlign(tabulate.ML)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("%").SetAlign(tabulate.MR)
	tab.Header("Count").SetAlign(tabulate.MR)
	tab.Header("Xfer").SetAlign(tabulate.MR)

	total := t.Samples[len(t.Samples)-1].End.Sub(t.Start)
	for _, sample := range t.Samples {
		row := tab.Row()
		row.Column(sample.Label)

		duration := sample.End.Sub(sample.Start)
		row.Column(duration.String())
		row.Column(fmt.Sprintf("%.2f%%",
			float64(duration)/float64(total)*100))
		row.Column(fmt.Sprintf("%d", sample.Count))
		row.Column(FileSize(sample.Xfer).String())

		for idx, sub := range sample.Samples {
			row := tab.Row()

			var prefix string
			if idx+1 >= len(sample.Samples) {
				prefix = "╰╴"
			} else {
				prefix = "├╴"
			}
			row.Column(prefix + sub.Label).SetFormat(tabulate.FmtItalic)

			d := sub.End.Sub(sub.Start)
			row.Column(d.String()).SetFormat(tabulate.FmtItalic)
			row.Column(
				fmt.Sprintf("%.2f%%", float64(d)/float64(duration)*100)).
				SetFormat(tabulate.FmtItalic)
		}
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column(total.String()).SetFormat(tabulate.FmtBold)
	row.Column("").SetFormat(tabulate.FmtBold)
	row.Column("").SetFormat(tabulate.FmtBold)
	row.Column(FileSize(sent + received).String()).SetFormat(tabulate.FmtBold)

	if sent+received > 0 {
		row = tab.Row()
		row.Column("├╴Sent").SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(
			fmt.Sprintf("%.2f%%", float64(sent)/float64(sent+received)*100)).
			SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(FileSize(sent).String()).SetFormat(tabulate.FmtItalic)

		row = tab.Row()
		row.Column("├╴Rcvd").SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(
			fmt.Sprintf("%.2f%%", float64(received)/float64(sent+received)*100)).
			SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(FileSize(received).String()).SetFormat(tabulate.FmtItalic)
	}

	row = tab.Row()
	row.Column("╰╴Flcd").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column("")
	row.Column("")
	row.Column(fmt.Sprintf("%v", flushed)).SetFormat(tabulate.FmtItalic)

	tab.Print(w)
}

// Sample contains information about one timing sample.
type Sample struct {
	Label   string
	Start   time.Time
	End     time.Time
	Count   int
	Xfer    uint64
	Samples []*Sample
}

// SubSample adds a sub-sample for a timing sample.
func (s *Sample) SubSample(label string, end time.Time) {
	start := s.Start
	if len(s.Samples) > 0 {
		start = s.Samples[len(s.Samples)-1].End
	}
	s.Samples = append(s.Samples, &Sample{
		Label: label,
		Start: start,
		End:   end,
	})
}
