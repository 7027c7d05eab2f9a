package main

import (
	_ "github.com/jimmicro/version"
	"github.com/jimyag/rbdmig/cmd/rbdmig/cmd"
)

func main() {
	cmd.Execute()
}
