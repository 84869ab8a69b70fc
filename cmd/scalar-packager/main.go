package main

import "github.com/oshokin/scalar-upgrader/cmd/scalar-packager/cmd"

func main() {
	cmd.Execute()
}
