// Classmate - conversational learning bot
package main

import (
	"os"

	"github.com/ashureev/classmate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
