package main

import "lpgen/internal/cli"

func main() {
	cli.Execute()
}
