// Command redbtree is a small external collaborator exercising a
// github.com/calvinalkan/redbtree database from the shell: allocator
// micro-benchmarks, single key/value inserts and lookups, a random-fill
// workload, and a tree dump. It is not part of the library's core contract.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:]))
}

func run(stdout, stderr *os.File, args []string) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	opts, subArgs, err := parseGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if len(subArgs) < 1 {
		printUsage(stderr)
		return 1
	}

	cmd, rest := subArgs[0], subArgs[1:]

	c, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n", cmd)
		printUsage(stderr)
		return 1
	}

	return c(stdout, stderr, opts, rest)
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, `usage: redbtree [--db path] <command> [args]

commands:
  alloc <size> <n>       allocate n slots of size, printing each offset
  free <ptr> <n>         free ptr n times
  allocfree <size> <n>   allocate then immediately free, n times
  add <key> <value>      insert key=value, replacing any existing value
  find <key>             look up key and print its value
  fill <range> <n>       insert n random keys drawn from [0,range)
  walk                   dump every key in the tree, depth first
  version                print the on-disk format version`)
}
