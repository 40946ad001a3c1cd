// Package lifecycle starts and stops all FIX sessions together.
//
// A Controller is either STOPPED or RUNNING. Start opens every session and
// may schedule an automatic stop; Stop closes them and cancels that timer.
// Starting twice returns ErrAlreadyRunning and stopping twice returns
// ErrAlreadyStopped, neither of which changes state. A failed open leaves
// the controller STOPPED.
//
// Each start begins a new generation. An auto-stop timer only acts on the
// generation that scheduled it, so a timer that fires after an explicit stop
// or a restart does nothing.
package lifecycle
