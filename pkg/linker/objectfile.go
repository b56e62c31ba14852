package linker

import "github.com/kirkbrauer/llvm-classic-mac/pkg/pef"

// ObjectFile is one parsed relocatable object input (shared libraries
// are opened as SharedLibrary instead). It wraps an InputFile with
// the per-section wrappers and bookkeeping the rest of the link needs
// (spec §4.2).
type ObjectFile struct {
	*InputFile

	// Sections is parallel to InputFile.Headers. Entries for the loader
	// section and for non-mergeable kinds are nil (spec §4.2 step 2).
	Sections []*InputSection

	// DefinedSymbols are the symbols this file contributed to the global
	// table via its own loader section's export list.
	DefinedSymbols []*Symbol
}

// ParseObjectFile runs the object-reader operation of spec §4.2 against
// file: it decodes the container and loader section, wraps every
// mergeable section's bytes, registers the file's exported symbols as
// Defined, and scans its relocation streams for imported-symbol
// references so they can be registered as Undefined ahead of shared
// library resolution.
func ParseObjectFile(ctx *Context, file *File) (*ObjectFile, error) {
	inputFile, err := parseInputFile(file)
	if err != nil {
		return nil, err
	}

	obj := &ObjectFile{InputFile: inputFile}
	obj.Sections = make([]*InputSection, len(inputFile.Headers))

	for i, h := range inputFile.Headers {
		if i == inputFile.LoaderIndex {
			continue
		}
		if !h.SectionKind.Mergeable() {
			// Retained in Headers (step 2) but never wrapped: nothing
			// downstream reads or relocates an unknown-kind section's body.
			continue
		}
		isec, err := newInputSection(obj, i, h)
		if err != nil {
			return nil, newError(MalformedFile, file.Name, err)
		}
		obj.Sections[i] = isec
	}

	if inputFile.Loader == nil {
		return obj, nil
	}

	for _, exp := range inputFile.Loader.ExportedSymbols {
		name := inputFile.Loader.ExportedSymbolName(exp)
		if name == "" {
			continue
		}
		sym, err := ctx.Symbols.AddDefined(name, obj, exp.SymbolValue, exp.SectionIndex, exp.Class(), ctx.Config.AllowUndefined)
		if err != nil {
			ctx.AddError(err)
			continue
		}
		obj.DefinedSymbols = append(obj.DefinedSymbols, sym)
	}

	for _, rh := range inputFile.Loader.RelocHeaders {
		instrs := inputFile.Loader.RelocInstructionsFor(rh)
		if int(rh.SectionIndex) < len(obj.Sections) {
			if isec := obj.Sections[rh.SectionIndex]; isec != nil {
				isec.Reloc = instrs
			}
		}
		obj.registerImportReferences(ctx, instrs)
	}

	return obj, nil
}

// registerImportReferences scans a decoded relocation stream for
// references into this file's own imported-symbol table and registers
// each referenced name as Undefined in the global table (spec §4.2 step
// 5). Resolution against the command line's shared libraries happens
// later; this step only records that the name is needed.
func (obj *ObjectFile) registerImportReferences(ctx *Context, instrs []pef.Instruction) {
	if obj.Loader == nil {
		return
	}
	for _, fix := range DecodeRelocations(instrs) {
		if fix.Kind != FixupImport {
			continue
		}
		if fix.ImportIndex < 0 || fix.ImportIndex >= len(obj.Loader.ImportedSymbols) {
			continue
		}
		name := obj.Loader.ImportedSymbolName(obj.Loader.ImportedSymbols[fix.ImportIndex])
		if name != "" {
			ctx.Symbols.AddUndefined(name)
		}
	}
}
