package main

import (
	"github.com/garpnet/consensus-core/cmd"
)

func main() {
	cmd.Execute()
}
