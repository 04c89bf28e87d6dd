package kernel

import (
	"fmt"
	"io"
)

// LoggingDispatcher is a Dispatcher that implements no kernel service
// bodies at all: every call is logged to its writer and answered with
// a zero result. It exists for standalone runs of a XEX image with no
// host-supplied HLE implementation (cmd/xenonjit's default), and for
// tests that only care whether a thunk was reached, not what it did.
type LoggingDispatcher struct {
	w io.Writer
}

// NewLoggingDispatcher returns a Dispatcher that logs every Invoke to w.
func NewLoggingDispatcher(w io.Writer) *LoggingDispatcher {
	return &LoggingDispatcher{w: w}
}

// Invoke logs the ordinal and its namespace and returns (0, nil),
// exactly the behavior of an HLE function stub that does nothing.
func (d *LoggingDispatcher) Invoke(thread ThreadContext, raw uint32) (uint64, error) {
	ordinal, namespace := Ordinal(raw)
	tag := "kernel"
	if namespace == NamespaceUser {
		tag = "user"
	}
	fmt.Fprintf(d.w, "kernel: unimplemented %s ordinal %d (r3=%#x r4=%#x r5=%#x)\n",
		tag, ordinal, thread.GPR(3), thread.GPR(4), thread.GPR(5))
	return 0, nil
}
