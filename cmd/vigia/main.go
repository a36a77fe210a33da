package main

import "github.com/obrasai/vigia/internal/cli"

func main() {
	cli.Execute()
}
