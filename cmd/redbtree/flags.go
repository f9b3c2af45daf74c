package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

const defaultDBPath = "./redbtree.db"

// globalOptions holds the flags that apply to every subcommand.
type globalOptions struct {
	dbPath  string
	barrier bool
}

// parseGlobalFlags pulls --db and --barrier out of args (wherever they
// appear) and returns them plus the remaining positional arguments (the
// subcommand and its own args).
//
// The barrier defaults to off, matching original_source/btree_example.c's
// btree_clear_flags(bt, BTREE_FLAG_USE_WRITE_BARRIER) — this tool is a
// micro-benchmark harness, not a durability demo.
func parseGlobalFlags(args []string) (globalOptions, []string, error) {
	fs := flag.NewFlagSet("redbtree", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)

	path := fs.String("db", defaultDBPath, "path to the database file")
	barrier := fs.Bool("barrier", false, "keep the write barrier enabled")

	if err := fs.Parse(args); err != nil {
		return globalOptions{}, nil, err
	}

	return globalOptions{dbPath: *path, barrier: *barrier}, fs.Args(), nil
}
