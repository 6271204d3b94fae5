package main

import "fatture/internal/cli"

func main() {
	cli.Execute()
}
