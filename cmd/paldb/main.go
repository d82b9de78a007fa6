// Command paldbctl builds, inspects, and queries PalDB store files from
// the shell: a "side data" artifact is normally produced and inspected
// offline, so the engine gets a small operator CLI rather than only a
// library surface.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/paldbgo/paldb"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "get":
		err = runGet(os.Args[2:])
	case "stat":
		err = runStat(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "paldbctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: paldbctl <build|get|stat|dump> [flags]`)
}

func newLogger(verbose bool) *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	cfg := zap.NewDevelopmentConfig()
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// runBuild reads "key\tvalue" lines from stdin (or --input) and writes a
// store file at --out, one string key/value per line.
func runBuild(args []string) error {
	fs := pflag.NewFlagSet("build", pflag.ExitOnError)
	out := fs.String("out", "", "output store file path")
	input := fs.String("input", "-", "input file of tab-separated key/value lines, - for stdin")
	duplicates := fs.Bool("duplicates", false, "allow duplicate keys (last write wins)")
	bloom := fs.Float64("bloom-fp-rate", 0, "enable a bloom filter at this false-positive rate (0 disables)")
	verbose := fs.Bool("verbose", false, "structured build logging")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("build: --out is required")
	}

	var opts []paldb.Option
	opts = append(opts, paldb.WithDuplicatesEnabled(*duplicates), paldb.WithLogger(newLogger(*verbose)))
	if *bloom > 0 {
		opts = append(opts, paldb.WithBloomFilter(*bloom))
	}

	w, err := paldb.NewWriter(*out, opts...)
	if err != nil {
		return err
	}

	r := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			w.Abort()
			return fmt.Errorf("build: malformed line %q, want key\\tvalue", line)
		}
		if err := w.Put(parts[0], parts[1]); err != nil {
			w.Abort()
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		w.Abort()
		return err
	}

	return w.Close()
}

func runGet(args []string) error {
	fs := pflag.NewFlagSet("get", pflag.ExitOnError)
	file := fs.String("file", "", "store file path")
	key := fs.String("key", "", "string key to look up")
	fs.Parse(args)

	if *file == "" || *key == "" {
		return fmt.Errorf("get: --file and --key are required")
	}

	r, err := paldb.Open(*file)
	if err != nil {
		return err
	}
	defer r.Close()

	v, ok, err := r.Get(*key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("get: key %q not found", *key)
	}
	fmt.Println(v)
	return nil
}

func runStat(args []string) error {
	fs := pflag.NewFlagSet("stat", pflag.ExitOnError)
	file := fs.String("file", "", "store file path")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("stat: --file is required")
	}

	r, err := paldb.Open(*file)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("size: %d\n", r.Size())
	return nil
}

func runDump(args []string) error {
	fs := pflag.NewFlagSet("dump", pflag.ExitOnError)
	file := fs.String("file", "", "store file path")
	keysOnly := fs.Bool("keys-only", false, "dump keys only, skip value decoding")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("dump: --file is required")
	}

	r, err := paldb.Open(*file)
	if err != nil {
		return err
	}
	defer r.Close()

	if *keysOnly {
		for k := range r.StreamKeys() {
			fmt.Println(k)
		}
		return nil
	}
	for k, v := range r.Stream() {
		fmt.Printf("%v\t%v\n", k, v)
	}
	return nil
}
