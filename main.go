package main

import "github.com/user/trueque/internal/cli"

func main() {
	cli.Execute()
}
