package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/calvinalkan/redbtree"
	"github.com/calvinalkan/redbtree/internal/header"
)

type commandFunc func(stdout, stderr *os.File, opts globalOptions, args []string) int

var commands = map[string]commandFunc{
	"alloc":     cmdAlloc,
	"free":      cmdFree,
	"allocfree": cmdAllocFree,
	"add":       cmdAdd,
	"find":      cmdFind,
	"fill":      cmdFill,
	"walk":      cmdWalk,
	"version":   cmdVersion,
}

func openDB(opts globalOptions) (*redbtree.DB, error) {
	o := redbtree.DefaultOptions()
	o.Create = true
	o.Barrier = opts.barrier

	return redbtree.Open(opts.dbPath, o)
}

// parseKey copies s into a redbtree.Key, filling the remaining bytes on the
// right with zero bytes, or truncating s to redbtree.KeySize bytes.
func parseKey(s string) redbtree.Key {
	var k redbtree.Key
	copy(k[:], s)
	return k
}

func cmdAlloc(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: redbtree alloc <size> <n>")
		return 1
	}

	size, n, err := parseSizeAndCount(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	for i := 0; i < n; i++ {
		ptr, err := db.AllocRaw(size)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		fmt.Fprintf(stdout, "PTR: %d\n", ptr)
	}

	return 0
}

func cmdFree(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: redbtree free <ptr> <n>")
		return 1
	}

	ptr, n, err := parseSizeAndCount(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	for i := 0; i < n; i++ {
		if err := db.FreeRaw(uint64(ptr)); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}

	return 0
}

func cmdAllocFree(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: redbtree allocfree <size> <n>")
		return 1
	}

	size, n, err := parseSizeAndCount(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	for i := 0; i < n; i++ {
		ptr, err := db.AllocRaw(size)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		fmt.Fprintf(stdout, "PTR: %d\n", ptr)

		if err := db.FreeRaw(ptr); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}

	return 0
}

func cmdAdd(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: redbtree add <key> <value>")
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	if err := db.Add(parseKey(args[0]), []byte(args[1]), true); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintln(stdout, "retval 0")
	return 0
}

func cmdFind(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: redbtree find <key>")
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	off, err := db.Find(parseKey(args[0]))
	if err != nil {
		fmt.Fprintln(stdout, "Key not found")
		return 0
	}

	size, err := db.AllocSize(off)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	data := make([]byte, size)
	if err := db.Pread(data, off); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintf(stdout, "Key found at %d\n", off)
	fmt.Fprintf(stdout, "Value: %d bytes: %s\n", size, data)

	return 0
}

func cmdFill(stdout, stderr *os.File, opts globalOptions, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: redbtree fill <range> <n>")
		return 1
	}

	rng, n, err := parseSizeAndCount(args)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if rng == 0 {
		fmt.Fprintln(stderr, "error: range must be positive")
		return 1
	}

	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	for i := 0; i < n; i++ {
		r := rand.Intn(int(rng)) //nolint:gosec // CLI fill workload, not security sensitive
		key := parseKey(fmt.Sprintf("k%d", r))
		val := fmt.Sprintf("val:%d", r)

		if err := db.Add(key, []byte(val), true); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}

	return 0
}

func cmdWalk(stdout, stderr *os.File, opts globalOptions, args []string) int {
	db, err := openDB(opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer db.Close()

	err = db.Walk(func(key redbtree.Key, valueOffset uint64, depth int) error {
		for i := 0; i < depth; i++ {
			fmt.Fprint(stdout, " ")
		}

		size, sizeErr := db.AllocSize(valueOffset)
		if sizeErr != nil {
			return sizeErr
		}

		fmt.Fprintf(stdout, "Key %20s: @%d %d bytes\n", key[:], valueOffset, size)
		return nil
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	return 0
}

func cmdVersion(stdout, stderr *os.File, opts globalOptions, args []string) int {
	fmt.Fprintln(stdout, header.Magic)
	return 0
}

func parseSizeAndCount(args []string) (uint32, int, error) {
	size, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size/ptr %q: %w", args[0], err)
	}

	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid count %q: %w", args[1], err)
	}

	return uint32(size), n, nil
}
