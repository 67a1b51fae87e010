// The main package for the pricecrawl executable.
package main

import (
	"github.com/pricecrawl/pricecrawl/cmd"
)

func main() {
	cmd.Execute()
}
