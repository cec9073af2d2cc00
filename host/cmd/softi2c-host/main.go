// Command softi2c-host drives the soft I2C firmware from a workstation.
package main

import "microi2c/host/cmd/softi2c-host/cmd"

func main() {
	cmd.Execute()
}
