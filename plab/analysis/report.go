// Package analysis folds the append-only usage log into offline
// statistics. This is the consumer of the context keys recorded on each
// usage record: selection itself does not bucket by context by default,
// but the log keeps the data for exactly this kind of breakdown.
package analysis

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	ports "personalab/plab/engine/ports"
)

// TemplateReport summarizes all recorded trials of one template.
type TemplateReport struct {
	TemplateID     string
	Trials         int
	SuccessRate    float64
	MeanQuality    float64
	StdDevQuality  float64
	MeanLatency    float64
	ContextBuckets map[string]int
}

// Report is the full offline analysis of a usage log.
type Report struct {
	Templates   []TemplateReport
	TotalTrials int
	Skipped     int // undecodable log lines
}

// BuildReport reads the JSONL usage log at path. A missing log yields an
// empty report; individual bad lines are skipped and counted.
func BuildReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Report{}, nil
		}
		return nil, fmt.Errorf("could not open usage log: %w", err)
	}
	defer f.Close()

	type perTemplate struct {
		qualities []float64
		latencies []float64
		successes int
		contexts  map[string]int
	}
	byTemplate := make(map[string]*perTemplate)

	report := &Report{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec ports.UsageRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.TemplateID == "" {
			report.Skipped++
			continue
		}

		agg, ok := byTemplate[rec.TemplateID]
		if !ok {
			agg = &perTemplate{contexts: make(map[string]int)}
			byTemplate[rec.TemplateID] = agg
		}
		agg.qualities = append(agg.qualities, rec.QualityScore)
		agg.latencies = append(agg.latencies, rec.ResponseSeconds)
		if rec.Success {
			agg.successes++
		}
		agg.contexts[rec.ContextKey]++
		report.TotalTrials++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read usage log: %w", err)
	}

	for id, agg := range byTemplate {
		trials := len(agg.qualities)
		tr := TemplateReport{
			TemplateID:     id,
			Trials:         trials,
			SuccessRate:    float64(agg.successes) / float64(trials),
			MeanQuality:    stat.Mean(agg.qualities, nil),
			MeanLatency:    stat.Mean(agg.latencies, nil),
			ContextBuckets: agg.contexts,
		}
		if trials > 1 {
			tr.StdDevQuality = stat.StdDev(agg.qualities, nil)
		}
		report.Templates = append(report.Templates, tr)
	}

	// Most-used templates first; stable order for equal trial counts.
	sort.Slice(report.Templates, func(i, j int) bool {
		if report.Templates[i].Trials != report.Templates[j].Trials {
			return report.Templates[i].Trials > report.Templates[j].Trials
		}
		return report.Templates[i].TemplateID < report.Templates[j].TemplateID
	})
	return report, nil
}
