package tools

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Call is one entry in a batch dispatch: a tool name plus its arguments.
type Call struct {
	Name string
	Args map[string]any
}

// CallResult pairs a Call's outcome with the call_id assigned to it, so a
// caller can correlate a parallel call back to its originating request.
// call_id is a ULID rather than a UUID: log lines for a batch sort in
// dispatch order when grepped, which a random UUID would not give us.
type CallResult struct {
	CallID string
	Result Result
	Err    error
}

// BatchExecute partitions calls into parallel-safe and sequential groups per
// §4.C: parallel-safe calls (spec.supports_parallel=true) run concurrently,
// each with its own call_id; sequential calls run strictly in original
// order. Every goroutine's ExecContext is a shallow copy of ec and so still
// points at the same *EnergyBudget; that's intentional (energy is a shared
// resource across the whole batch), and EnergyBudget's own mutex is what
// makes the concurrent Get/Spend calls from parallel-safe goroutines safe.
// Results are returned re-sorted into the original call order.
func (r *Registry) BatchExecute(ec *ExecContext, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))
	var sequential []int

	var wg sync.WaitGroup
	for i, call := range calls {
		r.mu.RLock()
		t, known := r.tools[sanitizedName(call.Name)]
		r.mu.RUnlock()

		if known && t.spec.SupportsParallel {
			wg.Add(1)
			go func(i int, call Call) {
				defer wg.Done()
				callEC := *ec
				callEC.CallID = ulid.Make().String()
				res, err := r.Execute(&callEC, call.Name, call.Args)
				results[i] = CallResult{CallID: callEC.CallID, Result: res, Err: err}
			}(i, call)
			continue
		}
		sequential = append(sequential, i)
	}

	// Sequential calls share ec.EnergyAvailable and must run in original
	// order on the calling goroutine, strictly after parallel calls are
	// kicked off but independent of their completion.
	for _, i := range sequential {
		call := calls[i]
		callEC := *ec
		callEC.CallID = ulid.Make().String()
		res, err := r.Execute(&callEC, call.Name, call.Args)
		results[i] = CallResult{CallID: callEC.CallID, Result: res, Err: err}
	}

	wg.Wait()
	return results
}
