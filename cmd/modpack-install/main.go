package main

import "github.com/oshokin/modpack-installer/cmd/modpack-install/cmd"

func main() {
	cmd.Execute()
}
