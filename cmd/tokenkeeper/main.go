package main

import (
	"github.com/vietddude/tokenkeeper/internal/cli"
)

func main() {
	cli.Execute()
}
