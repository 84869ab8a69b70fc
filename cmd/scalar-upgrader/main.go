package main

import "github.com/oshokin/scalar-upgrader/cmd/scalar-upgrader/cmd"

func main() {
	cmd.Execute()
}
