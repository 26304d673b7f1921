package main

import (
	"github.com/betagouv/zacharie-sub006/cmd"
)

func main() {
	cmd.Execute()
}
