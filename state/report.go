package state

import (
	"errors"
	"fmt"
	"time"
)

// Result is the outcome of one chain's unit of work within a fan-out.
type Result struct {
	Chain    string        `json:"chain"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report collects the results of one fan-out round, in registry order.
// Only the chains the operation was launched for appear in it.
type Report struct {
	Operation string   `json:"operation"`
	Results   []Result `json:"results"`
}

// Err joins the per-chain errors, each prefixed with its chain. It is nil
// when every unit succeeded.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Chain, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed lists the chains whose unit of work returned an error.
func (r Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.Chain)
		}
	}
	return failed
}

// Chains lists the chains the operation was launched for.
func (r Report) Chains() []string {
	names := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		names = append(names, res.Chain)
	}
	return names
}

// Result returns the result recorded for chain.
func (r Report) Result(chain string) (Result, bool) {
	for _, res := range r.Results {
		if res.Chain == chain {
			return res, true
		}
	}
	return Result{}, false
}
