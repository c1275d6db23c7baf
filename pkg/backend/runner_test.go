package backend

import "context"

// fakeRunner records invocations and replays scripted results, letting the
// stages be tested without spawning processes. onRun fires while the staged
// artifact still exists, which is how compilation tests observe staging and
// simulate the backend writing compiled output.
type fakeRunner struct {
	invocations []Invocation
	results     []InvocationResult
	errs        []error
	onRun       func(inv Invocation)
}

var _ CommandRunner = (*fakeRunner)(nil)

func (f *fakeRunner) Run(_ context.Context, inv Invocation) (InvocationResult, error) {
	f.invocations = append(f.invocations, inv)
	if f.onRun != nil {
		f.onRun(inv)
	}

	i := len(f.invocations) - 1
	var result InvocationResult
	if i < len(f.results) {
		result = f.results[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return result, err
}

// selectedStem pulls the staged artifact stem out of a compile invocation.
func selectedStem(inv Invocation) string {
	for i, arg := range inv.Args {
		if arg == "--select" && i+1 < len(inv.Args) {
			return inv.Args[i+1]
		}
	}
	return ""
}
