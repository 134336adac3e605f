package main

import "admin-console/cli"

func main() {
	cli.Run()
}
