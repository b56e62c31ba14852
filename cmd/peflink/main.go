package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kirkbrauer/llvm-classic-mac/pkg/linker"
	"github.com/kirkbrauer/llvm-classic-mac/pkg/utils"
)

var version string

func main() {
	cfg, verbose := parseArgs(os.Args[1:])

	out, err := os.OpenFile(cfg.OutputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0777)
	utils.MustNo(err)
	defer out.Close()

	var diag = os.Stderr
	_ = verbose

	if err := linker.Link(cfg, diag, out); err != nil {
		os.Remove(cfg.OutputPath)
		utils.Fatal(err.Error())
	}
}

func parseArgs(args []string) (linker.Config, bool) {
	cfg := linker.Config{OutputPath: "a.out"}

	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"-" + name, "--" + name}
	}

	arg := ""
	readArg := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					utils.Fatal(fmt.Sprintf("option -%s: argument missing", name))
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	for len(args) > 0 {
		if readFlag("help") {
			fmt.Printf("usage: %s [options] file...\n", os.Args[0])
			os.Exit(0)
		}

		switch {
		case readArg("o") || readArg("output"):
			cfg.OutputPath = arg
		case readFlag("v") || readFlag("version"):
			fmt.Printf("peflink %s\n", version)
			os.Exit(0)
		case readArg("entry") || readArg("e"):
			cfg.Entry = arg
		case readArg("L"):
			cfg.LibrarySearchPaths = append(cfg.LibrarySearchPaths, arg)
		case readArg("l"):
			cfg.Libraries = append(cfg.Libraries, resolveLibrary(cfg.LibrarySearchPaths, arg))
		case readArg("weak-l"):
			cfg.WeakLibraries = append(cfg.WeakLibraries, resolveLibrary(cfg.LibrarySearchPaths, arg))
		case readArg("base-code"):
			cfg.BaseCode = mustParseUint(arg)
		case readArg("base-data"):
			cfg.BaseData = mustParseUint(arg)
		case readFlag("allow-undefined"):
			cfg.AllowUndefined = true
		case readFlag("verbose"):
			cfg.Verbose = true
		default:
			if args[0][0] == '-' {
				utils.Fatal(fmt.Sprintf("unknown command line option: %s", args[0]))
			}
			cfg.Inputs = append(cfg.Inputs, args[0])
			args = args[1:]
		}
	}

	// Per the entry-symbol open question: peflink never guesses "main".
	// An explicit -entry is required for every link.
	if cfg.Entry == "" {
		utils.Fatal("missing required -entry <symbol>")
	}

	return cfg, cfg.Verbose
}

func resolveLibrary(searchPaths []string, name string) string {
	candidate := "lib" + name + ".shlb"
	for _, dir := range searchPaths {
		path := dir + "/" + candidate
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	utils.Fatal(fmt.Sprintf("library not found: %s", name))
	return ""
}

func mustParseUint(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), hexOrDec(s), 64)
	utils.MustNo(err)
	return v
}

func hexOrDec(s string) int {
	if strings.HasPrefix(s, "0x") {
		return 16
	}
	return 10
}
