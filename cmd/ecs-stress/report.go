package main

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/plus3/strata/ecs"
)

type Report struct {
	// Configuration
	Duration   time.Duration
	Entities   int
	Components int
	Systems    int
	Workers    int
	FixedRate  float64

	// Results
	TotalUpdates   int64
	TotalTime      time.Duration
	UpdateTime     Stats
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
	Scheduler      *ecs.SchedulerStats
	Storage        ecs.StorageStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		s.Min = min(s.Min, sample)
		s.Max = max(s.Max, sample)
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

const reportTemplate = `
# ECS Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Initial Entities:** {{.Entities}}
- **Component Types:** {{.Components}}
- **Systems:** {{.Systems}}
- **Workers:** {{if .Workers}}{{.Workers}}{{else}}unbounded{{end}}
- **Fixed Rate:** {{.FixedRate}} Hz

## Performance Results
- **Total Updates:** {{.TotalUpdates}}
- **Total Test Time:** {{.TotalTime}}
- **Update Time (Frame):**
  - **Avg:** {{.UpdateTime.Avg}}
  - **Min:** {{.UpdateTime.Min}}
  - **Max:** {{.UpdateTime.Max}}
{{with .Scheduler}}- **Fixed Steps:** {{.FixedSteps}}
- **System Executions:** {{.TotalExecutions}}

| System | Timing | Runs | Avg | Max |
|---|---|---|---|---|
{{range .Systems}}| {{.Name}} | {{.Timing}} | {{.ExecutionCount}} | {{.AvgDuration}} | {{.MaxDuration}} |
{{end}}{{end}}
## Storage
- **Live Entities:** {{.Storage.TotalEntityCount}}
- **Archetypes:** {{.Storage.ArchetypeCount}}

## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:     {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{usub64 .MemStatsEnd.PauseTotalNs .MemStatsStart.PauseTotalNs | ns}}
- **Num GC Cycles:** {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
{{end}}`

var reportFuncs = template.FuncMap{
	"bsub": func(a, b uint64) int64 {
		return int64(a) - int64(b)
	},
	"usub": func(a, b uint32) uint32 {
		return a - b
	},
	"usub64": func(a, b uint64) uint64 {
		return a - b
	},
	"ns": func(ns uint64) string {
		return time.Duration(ns).String()
	},
}

// Generate writes the report as markdown.
func (r *Report) Generate(w io.Writer) error {
	tmpl, err := template.New("report").Funcs(reportFuncs).Parse(reportTemplate)
	if err != nil {
		return eris.Wrap(err, "parse report template")
	}
	return tmpl.Execute(w, r)
}

type jsonReport struct {
	Duration     string            `json:"duration"`
	Entities     int               `json:"entities"`
	Components   int               `json:"components"`
	Systems      int               `json:"systems"`
	Workers      int               `json:"workers"`
	FixedRate    float64           `json:"fixed_rate"`
	TotalUpdates int64             `json:"total_updates"`
	TotalTime    string            `json:"total_time"`
	UpdateAvg    string            `json:"update_avg"`
	UpdateMin    string            `json:"update_min"`
	UpdateMax    string            `json:"update_max"`
	FixedSteps   int64             `json:"fixed_steps"`
	LiveEntities int               `json:"live_entities"`
	Archetypes   int               `json:"archetypes"`
	HeapDelta    int64             `json:"heap_delta"`
	NumGC        uint32            `json:"num_gc"`
	GCPause      string            `json:"gc_pause,omitempty"`
	SystemStats  []jsonSystemStats `json:"system_stats"`
}

type jsonSystemStats struct {
	Name  string `json:"name"`
	Runs  int64  `json:"runs"`
	AvgNS int64  `json:"avg_ns"`
	MaxNS int64  `json:"max_ns"`
}

// WriteJSON writes a flattened report.
func (r *Report) WriteJSON(w io.Writer) error {
	out := jsonReport{
		Duration:     r.Duration.String(),
		Entities:     r.Entities,
		Components:   r.Components,
		Systems:      r.Systems,
		Workers:      r.Workers,
		FixedRate:    r.FixedRate,
		TotalUpdates: r.TotalUpdates,
		TotalTime:    r.TotalTime.String(),
		UpdateAvg:    r.UpdateTime.Avg.String(),
		UpdateMin:    r.UpdateTime.Min.String(),
		UpdateMax:    r.UpdateTime.Max.String(),
		LiveEntities: r.Storage.TotalEntityCount,
		Archetypes:   r.Storage.ArchetypeCount,
		HeapDelta:    int64(r.MemStatsEnd.HeapAlloc) - int64(r.MemStatsStart.HeapAlloc),
		NumGC:        r.MemStatsEnd.NumGC - r.MemStatsStart.NumGC,
	}
	if r.GCPauseMetrics {
		out.GCPause = time.Duration(r.MemStatsEnd.PauseTotalNs - r.MemStatsStart.PauseTotalNs).String()
	}
	if r.Scheduler != nil {
		out.FixedSteps = r.Scheduler.FixedSteps
		for _, sys := range r.Scheduler.Systems {
			out.SystemStats = append(out.SystemStats, jsonSystemStats{
				Name:  sys.Name,
				Runs:  sys.ExecutionCount,
				AvgNS: sys.AvgDuration.Nanoseconds(),
				MaxNS: sys.MaxDuration.Nanoseconds(),
			})
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode report")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
