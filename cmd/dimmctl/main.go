// dimmctl configures UPMEM DIMMs through their management MCU: console
// discovery, voltage and clock settings, VPD segments, and firmware
// updates over the EC console or USB DFU.
package main

import "github.com/pimworks/dimmctl/cmd/dimmctl/cmd"

func main() {
	cmd.Execute()
}
