package main

import "github.com/mcoot/playerwatch/internal/cli"

func main() {
	cli.Execute()
}
