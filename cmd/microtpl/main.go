package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: microtpl <command> [arguments]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  compile [flags] <template>           Print the generated routine source")
	fmt.Fprintln(w, "  render [flags] <template>            Render a template with data")
	fmt.Fprintln(w, "  store -db <dsn> <subcommand> ...     Manage precompiled templates")
	fmt.Fprintln(w, "  version                              Show version information")
	fmt.Fprintln(w, "\nA template path of - reads from standard input.")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	env := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	var err error
	switch command := args[0]; command {
	case "version":
		fmt.Fprintf(stdout, "microtpl version %s\n", version)
		return 0
	case "compile":
		err = env.compile(args[1:])
	case "render":
		err = env.render(args[1:])
	case "store":
		err = env.store(args[1:])
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		usage(stderr)
		return 2
	}

	if err != nil {
		if err == errUsage {
			return 2
		}
		fmt.Fprintf(stderr, "microtpl: %v\n", err)
		return 1
	}
	return 0
}
