package main

import "github.com/oshokin/modpack-installer/cmd/modpack-server/cmd"

func main() {
	cmd.Execute()
}
