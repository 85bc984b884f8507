// Tracedump inspects the SQLite trace databases produced by the tracing
// package.
package main

func main() {
	Execute()
}
