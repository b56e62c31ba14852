package linker

// ReadInputFiles loads and parses every path in cfg.Inputs as an object
// file, and every path in cfg.Libraries / cfg.WeakLibraries as a shared
// library (spec §6.3, §4.2, §4.3). Archive (.a) inputs are not a concept
// PEF has; the CLI collaborator hands the core only object and shared
// library containers directly.
func ReadInputFiles(ctx *Context) {
	for _, path := range ctx.Config.Inputs {
		file, err := ReadFile(path)
		if err != nil {
			ctx.AddError(err)
			continue
		}
		obj, err := ParseObjectFile(ctx, file)
		if err != nil {
			ctx.AddError(err)
			continue
		}
		ctx.Objects = append(ctx.Objects, obj)
	}

	loadLibs := func(paths []string, weak bool) {
		for _, path := range paths {
			file, err := ReadFile(path)
			if err != nil {
				// A missing weak library is not fatal (spec §4.3): the
				// symbols it would have exported simply never resolve.
				// A missing strong library always is, and gets its own
				// kind rather than a generic IoError (spec §7's taxonomy:
				// "LibraryNotFound (strong only)").
				if weak {
					ctx.Diag.Warnf("weak library %s: %v", path, err)
					continue
				}
				ctx.AddError(newError(LibraryNotFound, path, err))
				continue
			}
			lib, err := OpenSharedLibrary(file, weak)
			if err != nil {
				ctx.AddError(err)
				continue
			}
			if weak {
				ctx.WeakLibraries = append(ctx.WeakLibraries, lib)
			} else {
				ctx.Libraries = append(ctx.Libraries, lib)
			}
		}
	}

	loadLibs(ctx.Config.Libraries, false)
	loadLibs(ctx.Config.WeakLibraries, true)
}
