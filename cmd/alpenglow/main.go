package main

import (
	"github.com/onflow/alpenglow/cmd/alpenglow/cmd"
)

func main() {
	cmd.Execute()
}
