package main

import (
	"os"

	"github.com/0xfaulty/tgcontest/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
