package main

import "personalab/plab/cli"

func main() {
	cli.Execute()
}
