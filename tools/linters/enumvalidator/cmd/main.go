package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"kwik.app/dispatch/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
