package linker

import "io"

// OutputKind names the three fixed output groupings spec §4.5 lays
// sections into: code, data, read-only. They always appear in this order
// in the final container, followed by the loader section.
type OutputKind int

const (
	OutputCode OutputKind = iota
	OutputData
	OutputRodata
	numOutputKinds
)

func (k OutputKind) String() string {
	switch k {
	case OutputCode:
		return "code"
	case OutputData:
		return "data"
	case OutputRodata:
		return "rodata"
	default:
		return "unknown"
	}
}

// Context owns every piece of state for a single link invocation. It is
// the arena spec §9 describes: everything created during the link
// (symbols, input-section wrappers, output sections) is reachable from
// here and is discarded together when the link finishes.
type Context struct {
	Config Config
	Diag   *Diagnostics

	Symbols *SymbolTable

	Objects       []*ObjectFile
	Libraries     []*SharedLibrary
	WeakLibraries []*SharedLibrary

	OutputSections [numOutputKinds]*OutputSection

	// Loader is populated by BuildLoaderSection (§4.7) once layout and
	// relocation regeneration have both completed.
	Loader *LoaderBuild

	// Errors accumulates recoverable failures (spec §7); the driver checks
	// it at the end of each phase and stops before any later phase, and
	// before the write step, once any error has been recorded.
	Errors []error
}

// NewContext builds an empty link context for cfg. diagOut receives
// warning/progress output; pass nil to discard it.
func NewContext(cfg Config, diagOut io.Writer) *Context {
	ctx := &Context{
		Config:  cfg,
		Diag:    NewDiagnostics(cfg.Verbose, diagOut),
		Symbols: NewSymbolTable(),
	}
	for k := OutputKind(0); k < numOutputKinds; k++ {
		ctx.OutputSections[k] = NewOutputSection(k)
	}
	return ctx
}

// AddError records a recoverable error without aborting the link
// (spec §7 propagation policy).
func (ctx *Context) AddError(err error) {
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
	}
}

func (ctx *Context) HasErrors() bool { return len(ctx.Errors) > 0 }
