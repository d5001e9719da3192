package metrics

import (
	"fmt"
	"log"
	"math"
	"slices"
	"time"
)

const (
	// SimpleMaxCapacity is the maximum number of responses that can be stored in the Simple metrics
	SimpleMaxCapacity = 20_000
)

// Simple metrics keeps everything in memory
// Not scalable, but simple, and we use it to verify correctness of Reservoir
type Simple struct {
	responses      []time.Duration
	skippedQueries int
	failedQueries  int
	capacity       int
}

// NewSimple creates a new Simple metrics
func NewSimple() *Simple {
	return &Simple{
		responses: make([]time.Duration, 0),
		capacity:  SimpleMaxCapacity,
	}
}

// NewSimpleWithCapacity creates a new Simple metrics with a pre-allocated capacity
// We have an upper bound of max samples, capacity as int could allocate PB of RAM
func NewSimpleWithCapacity(capacity int) (*Simple, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be greater than 0")
	}

	if capacity > SimpleMaxCapacity {
		return nil, fmt.Errorf("capacity must be less than %d", SimpleMaxCapacity)
	}

	return &Simple{
		responses: make([]time.Duration, 0, capacity),
		capacity:  capacity,
	}, nil
}

// Full reports whether AddResponse would panic
func (s *Simple) Full() bool {
	return len(s.responses) == s.capacity
}

// AddResponse adds a response duration to the Simple metrics
// Callers feeding unbounded input check Full first
func (s *Simple) AddResponse(duration time.Duration) {
	if s.capacity == len(s.responses) {
		log.Panicf("Simple metrics has reached the max capacity of %d", s.capacity)
	}

	s.responses = append(s.responses, duration)
}

func (s *Simple) AddSkipped() {
	if s.skippedQueries == math.MaxInt {
		log.Panicf("skipped queries overflow")
	}
	s.skippedQueries++
}

func (s *Simple) AddFailed() {
	if s.failedQueries == math.MaxInt {
		log.Panicf("failed queries overflow")
	}
	s.failedQueries++
}

// Aggregate aggregates the responses into a Result
func (s *Simple) Aggregate() Result {
	result := Result{
		SkippedQueries: s.skippedQueries,
		FailedQueries:  s.failedQueries,
	}
	if len(s.responses) == 0 {
		return result
	}

	slices.Sort(s.responses)

	numberOfQueries := len(s.responses)
	totalProcessingTime := time.Duration(0)
	for _, response := range s.responses {
		totalProcessingTime += response
	}

	result.NumberOfQueries = numberOfQueries
	result.TotalProcessingTime = totalProcessingTime
	result.MinResponse = s.responses[0]
	result.MedianResponse = s.responses[numberOfQueries/2]
	result.AverageResponse = totalProcessingTime / time.Duration(numberOfQueries)
	result.MaxResponse = s.responses[numberOfQueries-1]
	return result
}
