// Package main provides the workspacectl CLI.
package main

import "github.com/mesh-intelligence/workspaces/internal/cli"

func main() {
	cli.Execute()
}
