package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Result is the aggregated metrics for a Recorder
// - # of statements processed,
// - # of statements that failed or were skipped,
// - total processing time across all statements,
// - the minimum statement time (for a single statement),
// - the median statement time,
// - the average statement time,
// - and the maximum statement time.
type Result struct {
	NumberOfQueries     int
	SkippedQueries      int
	FailedQueries       int
	TotalProcessingTime time.Duration
	MinResponse         time.Duration
	MedianResponse      time.Duration
	AverageResponse     time.Duration
	MaxResponse         time.Duration
}

// Table renders the Result as an ASCII table
func (r Result) Table() string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"metric", "value"})
	table.SetAutoFormatHeaders(false)
	table.AppendBulk([][]string{
		{"queries", strconv.Itoa(r.NumberOfQueries)},
		{"skipped", strconv.Itoa(r.SkippedQueries)},
		{"failed", strconv.Itoa(r.FailedQueries)},
		{"total", r.TotalProcessingTime.String()},
		{"min", r.MinResponse.String()},
		{"median", r.MedianResponse.String()},
		{"average", r.AverageResponse.String()},
		{"max", r.MaxResponse.String()},
	})
	table.Render()

	return sb.String()
}

// Recorder collects statement durations and outcomes
type Recorder interface {
	AddResponse(duration time.Duration)
	AddSkipped()
	AddFailed()
	Aggregate() Result
}

// Synchronized makes a Recorder safe for concurrent use
// Responses past the capacity of a full Simple are dropped
type Synchronized struct {
	mu       sync.Mutex
	recorder Recorder
}

// NewSynchronized wraps r with a mutex
func NewSynchronized(r Recorder) *Synchronized {
	return &Synchronized{recorder: r}
}

func (s *Synchronized) AddResponse(duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full() {
		return
	}
	s.recorder.AddResponse(duration)
}

// Full reports whether the wrapped recorder is a full Simple
func (s *Synchronized) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full()
}

func (s *Synchronized) full() bool {
	b, ok := s.recorder.(interface{ Full() bool })
	return ok && b.Full()
}

func (s *Synchronized) AddSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder.AddSkipped()
}

func (s *Synchronized) AddFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder.AddFailed()
}

func (s *Synchronized) Aggregate() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Aggregate()
}
