package main

import "github.com/mcoot/gaminghub/internal/cli"

func main() {
	cli.Execute()
}
