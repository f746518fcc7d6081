package main

import (
	"github.com/OFFIS-RIT/graphrag/internal/cli"
)

func main() {
	cli.Execute()
}
