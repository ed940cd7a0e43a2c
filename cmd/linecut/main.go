package main

import "github.com/forPelevin/linecut/internal/cli"

func main() {
	cli.Main()
}
