package main

import (
	"github.com/buildsight/rca-cli/cmd"
)

func main() {
	cmd.Execute()
}
