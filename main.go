package main

import (
	"github.com/rickypin/capmaster/cmd"
)

func main() {
	cmd.Execute()
}
