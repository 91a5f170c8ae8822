package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

const usage = `usage: cartsync [flags] <command> [args]

commands:
  serve              run the live server and cart feed
  show               print the catalog and the cart
  total              print the cart total
  add <id>...        add one unit of each item
  remove <id>...     remove one unit of each item
  login <token>      save a session token and load its cart
  logout             forget the saved session token

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cartsync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file (defaults when empty)")
	envFile := fs.String("env", ".env", "Environment file loaded before the config")
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "cartsync version %s (built %s)\n", version, buildTime)
		return 0
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "Failed to load env file: %v\n", err)
			return 1
		}
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	if err := cmd(*configPath, fs.Args()[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "cartsync %s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}
