package main

import (
	"fmt"
	"os"
)

func run() error {
	return nil
}

func exit(code int) {
	os.Exit(code)
}

func main() {
	defer fmt.Println("done")

	if err := run(); err != nil {
		exit(1)
	}

	os.Exit(0) // want `os.Exit call is forbidden in main function: os.Exit\(0\)`
}
