package main

import "github.com/felixgeelhaar/laigent/cmd/laigent/cli"

func main() {
	cli.Execute()
}
