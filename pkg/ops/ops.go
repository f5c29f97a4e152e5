// Package ops routes tool operations to their targets. Every operation
// declares its scope explicitly: rank-scoped work is applied to each
// rank device in turn under the batch policy, fleet-scoped work
// receives the whole target list once and owns its fan-out.
package ops

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pimworks/dimmctl/pkg/batch"
	"github.com/pimworks/dimmctl/pkg/dimm"
)

// Scope says how an operation consumes its targets.
type Scope int

const (
	// ScopeRank applies the operation once per rank device.
	ScopeRank Scope = iota
	// ScopeFleet hands the whole target list to the operation.
	ScopeFleet
)

// RankFunc is one unit of rank-scoped work.
type RankFunc func(ctx context.Context, rankPath string) error

// FleetFunc is fleet-scoped work over the full target list.
type FleetFunc func(ctx context.Context, rankPaths []string) error

// Operation is one dispatchable tool mode.
type Operation struct {
	Name  string
	Scope Scope
	Rank  RankFunc
	Fleet FleetFunc
}

// Dispatch runs op against targets under the policy. A rank-scoped
// batch that tolerated failures ends with a summary error so the
// process still exits nonzero.
func Dispatch(ctx context.Context, op Operation, targets []string, pol batch.Policy) error {
	switch op.Scope {
	case ScopeRank:
		if op.Rank == nil {
			return fmt.Errorf("ops: %s has no rank handler", op.Name)
		}
		failed, err := batch.Apply(func(target string) error {
			return op.Rank(ctx, target)
		}, targets, pol)
		if err != nil {
			return err
		}
		if failed {
			return errors.New("at least one error occurred during the process")
		}
		return nil

	case ScopeFleet:
		if op.Fleet == nil {
			return fmt.Errorf("ops: %s has no fleet handler", op.Name)
		}
		return op.Fleet(ctx, targets)

	default:
		return fmt.Errorf("ops: %s: unknown scope %d", op.Name, op.Scope)
	}
}

// RankTargets expands the --rank flag value: a comma-separated list of
// rank device paths, or every rank device on the host when the flag is
// empty. glob overrides the host-wide pattern, for tests.
func RankTargets(flagValue, glob string) []string {
	if flagValue != "" {
		return strings.Split(flagValue, ",")
	}
	if glob == "" {
		glob = dimm.RankDeviceGlob
	}
	matches, _ := filepath.Glob(glob)
	return matches
}
