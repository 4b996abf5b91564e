package main

import "github.com/kiranshivaraju/explainer/internal/cli"

func main() {
	cli.Execute()
}
