package metrics

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

const (
	// ReservoirMaxCapacity is the maximum number of responses that can be stored in the Reservoir metrics
	ReservoirMaxCapacity = 20_000
	// ReservoirDefaultSampleSize is the fixed number of samples to keep in the reservoir
	ReservoirDefaultSampleSize = 10_000
)

// Reservoir keeps a fixed size uniform sample of the responses
// min, max, total and count are exact, the median is computed over the sample
type Reservoir struct {
	responses           []time.Duration
	numberOfQueries     int
	skippedQueries      int
	failedQueries       int
	totalProcessingTime time.Duration
	minResponse         time.Duration
	maxResponse         time.Duration
	sampleSize          int
	funcRandIntn        func(n int) int
}

// NewReservoir creates a new Reservoir with default sample size
// A nil funcRandIntn uses math/rand/v2
func NewReservoir(funcRandIntn func(n int) int) *Reservoir {
	if funcRandIntn == nil {
		funcRandIntn = rand.IntN
	}

	return &Reservoir{
		responses:    make([]time.Duration, 0, ReservoirDefaultSampleSize),
		sampleSize:   ReservoirDefaultSampleSize,
		funcRandIntn: funcRandIntn,
	}
}

// NewReservoirWithSize creates a new Reservoir with specified sample size
func NewReservoirWithSize(sampleSize int, funcRandIntn func(n int) int) (*Reservoir, error) {
	if sampleSize < 1 {
		return nil, fmt.Errorf("sampleSize must be greater than 0")
	}

	if sampleSize > ReservoirMaxCapacity {
		return nil, fmt.Errorf("sampleSize must be less than %d", ReservoirMaxCapacity)
	}

	if funcRandIntn == nil {
		funcRandIntn = rand.IntN
	}

	return &Reservoir{
		responses:    make([]time.Duration, 0, sampleSize),
		sampleSize:   sampleSize,
		funcRandIntn: funcRandIntn,
	}, nil
}

func (r *Reservoir) AddResponse(duration time.Duration) {
	r.numberOfQueries++
	r.totalProcessingTime += duration

	if duration < r.minResponse || r.numberOfQueries == 1 {
		r.minResponse = duration
	}
	if duration > r.maxResponse || r.numberOfQueries == 1 {
		r.maxResponse = duration
	}

	if len(r.responses) < r.sampleSize {
		r.responses = append(r.responses, duration)
		return
	}

	// Algorithm R: the i-th response replaces a random slot with probability sampleSize/i
	j := r.funcRandIntn(r.numberOfQueries)
	if j < r.sampleSize {
		r.responses[j] = duration
	}
}

func (r *Reservoir) AddSkipped() {
	r.skippedQueries++
}

func (r *Reservoir) AddFailed() {
	r.failedQueries++
}

// Aggregate aggregates the responses into a Result
func (r *Reservoir) Aggregate() Result {
	result := Result{
		NumberOfQueries:     r.numberOfQueries,
		SkippedQueries:      r.skippedQueries,
		FailedQueries:       r.failedQueries,
		TotalProcessingTime: r.totalProcessingTime,
		MinResponse:         r.minResponse,
		MaxResponse:         r.maxResponse,
	}
	if r.numberOfQueries == 0 {
		return result
	}

	sorted := slices.Clone(r.responses)
	slices.Sort(sorted)
	result.MedianResponse = sorted[len(sorted)/2]
	result.AverageResponse = r.totalProcessingTime / time.Duration(r.numberOfQueries)
	return result
}
