// Package batch applies an operation across many devices under a
// configurable error policy. It is the single fault-tolerance primitive
// behind every multi-device command: device-scoped failures are either
// tolerated and reported, or abort the whole batch, depending on the
// policy. Failures that are not scoped to one device always abort.
package batch

import (
	"fmt"
	"os"

	"github.com/pimworks/dimmctl/pkg/dimm"
)

// Policy controls how a batch reacts to a device-scoped failure.
type Policy struct {
	// StopOnError aborts the batch at the first failure instead of
	// carrying on with the remaining targets.
	StopOnError bool
	// Report receives each failure tolerated under the continue policy.
	// Nil prints the error to standard output.
	Report func(err error)
}

func (p Policy) report(err error) {
	if p.Report != nil {
		p.Report(err)
		return
	}
	fmt.Fprintln(os.Stdout, err)
}

// Op is one unit of work against a single target.
type Op func(target string) error

// Apply runs op over each target in order. It reports whether any
// target failed. Under the continue policy a *dimm.DeviceError is
// reported and the batch moves on; under stop-on-error it is returned
// and the remaining targets are never attempted. Errors that are not
// device-scoped are returned immediately regardless of policy.
func Apply(op Op, targets []string, pol Policy) (bool, error) {
	failed := false
	for _, target := range targets {
		err := op(target)
		if err == nil {
			continue
		}
		if !dimm.IsDeviceError(err) || pol.StopOnError {
			return true, err
		}
		pol.report(err)
		failed = true
	}
	return failed, nil
}

// Map runs op over each target in order, collecting only successful
// results. Failure handling follows Apply: tolerated device-scoped
// failures contribute no result and set the failure flag.
func Map[T any](op func(target string) (T, error), targets []string, pol Policy) (bool, []T, error) {
	failed := false
	results := make([]T, 0, len(targets))
	for _, target := range targets {
		res, err := op(target)
		if err == nil {
			results = append(results, res)
			continue
		}
		if !dimm.IsDeviceError(err) || pol.StopOnError {
			return true, nil, err
		}
		pol.report(err)
		failed = true
	}
	return failed, results, nil
}
