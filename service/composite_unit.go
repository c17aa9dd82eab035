/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
)

// CompositeUnit starts and stops a set of units together.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start starts all units concurrently and waits until each Start call returns.
// If any unit fails, the others are stopped non-gracefully and a single CompositeUnitError
// with the start and stop errors is reported.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	unitErrs := make([]chan error, len(cu.Units))
	failed := make(chan struct{})
	var failOnce sync.Once
	var wg sync.WaitGroup
	for i := range cu.Units {
		unitErrs[i] = make(chan error, 1)
		wg.Add(1)
		go func(u Unit, errCh chan error) {
			defer wg.Done()
			u.Start(errCh)
			if len(errCh) != 0 {
				failOnce.Do(func() { close(failed) })
			}
		}(cu.Units[i], unitErrs[i])
	}

	allStarted := make(chan struct{})
	go func() {
		wg.Wait()
		close(allStarted)
	}()

	select {
	case <-failed:
	case <-allStarted:
		select {
		case <-failed:
		default:
			return
		}
	}

	var errs []error
	if stopErr := cu.Stop(false); stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	for _, errCh := range unitErrs {
		select {
		case err := <-errCh:
			errs = append([]error{err}, errs...)
		default:
		}
	}
	fatalErr <- &CompositeUnitError{errs}
}

// Stop stops all units concurrently and collects their errors into a CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	errs := make([]error, len(cu.Units))
	var wg sync.WaitGroup
	for i := range cu.Units {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cu.Units[i].Stop(gracefully)
		}(i)
	}
	wg.Wait()

	var unitErrs []error
	for _, err := range errs {
		if err != nil {
			unitErrs = append(unitErrs, err)
		}
	}
	if len(unitErrs) == 0 {
		return nil
	}
	return &CompositeUnitError{unitErrs}
}

func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError holds errors of the individual units.
type CompositeUnitError struct {
	UnitErrors []error
}

func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, len(cue.UnitErrors))
	for i, err := range cue.UnitErrors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap allows errors.Is/As to look into the unit errors.
func (cue *CompositeUnitError) Unwrap() []error {
	return cue.UnitErrors
}
