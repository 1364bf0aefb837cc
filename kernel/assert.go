package kernel

// Assert panics via the kfmt panic redirection path if cond is false. It is
// used by callers that must enforce an invariant the type system cannot
// express, e.g. "this is not the kernel context".
func Assert(cond bool, err *Error) {
	if !cond {
		panic(err)
	}
}
