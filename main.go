package main

import "github.com/Altius/stampipes/programs/sciatac_demux/cmd"

func main() {
	cmd.Execute()
}
