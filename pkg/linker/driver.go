package linker

import "io"

// Link runs a full link for cfg, writing the resulting container to
// out. It implements spec §7's error propagation policy: parse-phase
// failures accumulate across every input rather than aborting at the
// first one, Link returns the first recorded error at the end of any
// phase that recorded one, and no output is ever written once any error
// has been recorded.
func Link(cfg Config, diagOut io.Writer, out io.Writer) error {
	ctx := NewContext(cfg, diagOut)

	ReadInputFiles(ctx)
	if ctx.HasErrors() {
		return ctx.firstError()
	}

	ResolveAgainstLibraries(ctx)
	reportUndefined(ctx)
	if entry := ctx.Symbols.Lookup(ctx.Config.Entry); entry == nil || entry.State != StateDefined {
		ctx.AddError(newError(UndefinedSymbol, ctx.Config.Entry, nil))
	}
	if ctx.HasErrors() {
		return ctx.firstError()
	}

	BinSections(ctx)
	LayoutOutputSections(ctx)
	AssignSectionIndices(ctx)

	lb := BuildLoaderSection(ctx)
	if ctx.HasErrors() {
		return ctx.firstError()
	}

	body := WriteOutput(ctx, lb)
	if _, err := out.Write(body); err != nil {
		return newError(IoError, cfg.OutputPath, err)
	}

	return nil
}

// reportUndefined records an UndefinedSymbol error for every symbol
// still Undefined after library resolution, unless Config.AllowUndefined
// is set (spec §7, §8 S6). When weak libraries were named, every such
// symbol was last looked up in them, so it is reported as a warning
// instead of an error.
func reportUndefined(ctx *Context) {
	if ctx.Config.AllowUndefined {
		return
	}
	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateUndefined {
			continue
		}
		if len(ctx.Config.WeakLibraries) > 0 {
			ctx.Diag.Warnf("undefined symbol %s not found in weak libraries", sym.Name)
			continue
		}
		ctx.AddError(newError(UndefinedSymbol, sym.Name, nil))
	}
}

func (ctx *Context) firstError() error {
	if len(ctx.Errors) == 0 {
		return nil
	}
	return ctx.Errors[0]
}
