package main

import "github.com/oshokin/modpack-installer/cmd/modpack-packager/cmd"

func main() {
	cmd.Execute()
}
