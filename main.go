package main

import (
	"os"

	"github.com/Erprabhat8423/beyond-academy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
