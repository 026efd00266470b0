// File: cmd/diagnostic/main.go
package main

import (
	"fmt"
	"os"
)

const usage = `usage: diagnostic <command> [flags]

commands:
  llm     validate the API key and stream a probe reply
  token   mint a bearer token for the local API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "llm":
		err = runLLM(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
