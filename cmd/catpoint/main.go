package main

import "github.com/oshokin/catpoint/cmd/catpoint/cmd"

func main() {
	cmd.Execute()
}
