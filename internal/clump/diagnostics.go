package clump

// Diagnostics receives progress and warning messages from a clumping run.
type Diagnostics interface {
	Progress(msg string)
	Warning(msg string)
}

type nopDiagnostics struct{}

func (nopDiagnostics) Progress(string) {}
func (nopDiagnostics) Warning(string)  {}
