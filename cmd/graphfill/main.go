// Package main provides the graphfill CLI.
package main

import "github.com/mesh-intelligence/graphfill/internal/cli"

func main() {
	cli.Execute()
}
