// Command jsgi serves modules over HTTP.
package main

import "github.com/advdv/jsgi/internal/cli"

func main() {
	cli.Execute()
}
