package main

import "github.com/Alijeyrad/simorq_booking/cmd"

func main() {
	cmd.Execute()
}
