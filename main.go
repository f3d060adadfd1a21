package main

import (
	"os"

	"github.com/miaoti/trainticket-fuzz/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
