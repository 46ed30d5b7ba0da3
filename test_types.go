package dynpatch

// Greeter for testing purpose.
type Greeter interface {
	Greet(name string) string
}

var (
	// TestDebug for testing purpose.
	TestDebug = false
)
