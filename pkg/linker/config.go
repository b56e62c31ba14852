package linker

import (
	"fmt"
	"io"
)

// Config is the exact configuration record spec §6.3 requires the CLI
// collaborator to hand the core. The core never discovers library paths
// or parses flags itself; it only ever sees the resolved absolute paths
// below.
type Config struct {
	Entry               string
	OutputPath          string
	Inputs              []string
	Libraries           []string
	WeakLibraries       []string
	LibrarySearchPaths  []string
	BaseCode            uint64
	BaseData            uint64
	AllowUndefined      bool
	Verbose             bool
}

// Diagnostics is the progress/warning sink spec §6.3 calls out explicitly
// ("verbose... via a sink supplied by the collaborator"). Warnings never
// affect exit status (spec §7); they are purely informational.
type Diagnostics struct {
	verbose bool
	out     io.Writer
}

// NewDiagnostics builds a sink that writes to out only when verbose is
// true. out may be nil when verbose is false.
func NewDiagnostics(verbose bool, out io.Writer) *Diagnostics {
	return &Diagnostics{verbose: verbose, out: out}
}

// Warnf reports a non-fatal condition (weak import miss, benign version
// mismatch). Always emitted, independent of verbose, since warnings are
// the caller's only visibility into a successful-but-imperfect link.
func (d *Diagnostics) Warnf(format string, args ...any) {
	if d == nil || d.out == nil {
		return
	}
	fmt.Fprintf(d.out, "warning: "+format+"\n", args...)
}

// Progressf reports a structured progress message, gated on Config.Verbose.
func (d *Diagnostics) Progressf(format string, args ...any) {
	if d == nil || !d.verbose || d.out == nil {
		return
	}
	fmt.Fprintf(d.out, format+"\n", args...)
}
