// Package apperr defines the error taxonomy shared by every package in this
// module. Feasibility and consistency failures are returned as values, never
// panicked; panic is reserved for programmer errors on data the package
// itself already validated.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match on these with errors.Is; the typed structs
// below carry the offending identifiers and are extracted with errors.As.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidGraph         = errors.New("invalid graph")
	ErrInconsistentSchedule = errors.New("inconsistent schedule")
	ErrDeadlock             = errors.New("deadlock")
	ErrTimeout              = errors.New("solver timeout")
	ErrNotFound             = errors.New("not found")
	ErrOverspeed            = errors.New("overspeed")
	ErrCapacityViolation    = errors.New("capacity violation")
	ErrInfeasibleSchedule   = errors.New("infeasible schedule")
)

// NotFoundError identifies a missing entity by kind (e.g. "train", "vertex")
// and key.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotExistent builds a NotFoundError for the given kind/key pair.
func NotExistent(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// InfeasibleScheduleError reports a train whose schedule could not be met
// and why.
type InfeasibleScheduleError struct {
	Train int
	Cause string
}

func (e *InfeasibleScheduleError) Error() string {
	return fmt.Sprintf("train %d: %s: %v", e.Train, e.Cause, ErrInfeasibleSchedule)
}

func (e *InfeasibleScheduleError) Unwrap() error { return ErrInfeasibleSchedule }

// InfeasibleSchedule builds an InfeasibleScheduleError.
func InfeasibleSchedule(train int, cause string) error {
	return &InfeasibleScheduleError{Train: train, Cause: cause}
}

// OverspeedError reports a train exceeding the speed limit of an edge.
type OverspeedError struct {
	Train int
	Edge  int
}

func (e *OverspeedError) Error() string {
	return fmt.Sprintf("train %d on edge %d: %v", e.Train, e.Edge, ErrOverspeed)
}

func (e *OverspeedError) Unwrap() error { return ErrOverspeed }

// Overspeed builds an OverspeedError.
func Overspeed(train, edge int) error {
	return &OverspeedError{Train: train, Edge: edge}
}

// CapacityViolationError reports a TTD section occupied beyond its capacity.
type CapacityViolationError struct {
	TTD int
}

func (e *CapacityViolationError) Error() string {
	return fmt.Sprintf("ttd %d: %v", e.TTD, ErrCapacityViolation)
}

func (e *CapacityViolationError) Unwrap() error { return ErrCapacityViolation }

// CapacityViolation builds a CapacityViolationError.
func CapacityViolation(ttd int) error {
	return &CapacityViolationError{TTD: ttd}
}

// ConsistencyError reports a structural problem found while validating a
// network, timetable, instance or solution.
type ConsistencyError struct {
	Component string
	Detail    string
	base      error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Detail, e.base)
}

func (e *ConsistencyError) Unwrap() error { return e.base }

// InvalidGraph builds a ConsistencyError wrapping ErrInvalidGraph.
func InvalidGraph(component, detail string) error {
	return &ConsistencyError{Component: component, Detail: detail, base: ErrInvalidGraph}
}

// InconsistentSchedule builds a ConsistencyError wrapping ErrInconsistentSchedule.
func InconsistentSchedule(component, detail string) error {
	return &ConsistencyError{Component: component, Detail: detail, base: ErrInconsistentSchedule}
}

// InvalidInput builds a ConsistencyError wrapping ErrInvalidInput.
func InvalidInput(component, detail string) error {
	return &ConsistencyError{Component: component, Detail: detail, base: ErrInvalidInput}
}

// DeadlockError reports a set of trains mutually blocking one another.
type DeadlockError struct {
	Trains []int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("trains %v: %v", e.Trains, ErrDeadlock)
}

func (e *DeadlockError) Unwrap() error { return ErrDeadlock }

// Deadlock builds a DeadlockError.
func Deadlock(trains []int) error {
	return &DeadlockError{Trains: trains}
}
