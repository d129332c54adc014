package main

import "github.com/SaudiLinux/urlget/cmd"

func main() {
	cmd.Execute()
}
