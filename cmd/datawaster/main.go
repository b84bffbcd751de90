package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitSourceNotAccess  = 3
	ExitStorageError     = 5
	ExitValidationFailed = 7
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "run":
		return runSession(cmdArgs)
	case "serve":
		return runServe(cmdArgs)
	case "generate":
		return runGenerate(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: datawaster <command> [options]

Commands:
  run       Download and/or upload until the target size is reached
  serve     Serve the backing resource and the echo endpoint
  generate  Write a random backing resource into a bucket

Run 'datawaster <command> -h' for command-specific help.`)
}
