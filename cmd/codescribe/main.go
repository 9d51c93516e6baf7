package main

import "github.com/codescribe-dev/codescribe/internal/cli"

func main() {
	cli.Execute()
}
