package main

import sys "os"

type exiter struct{}

func (exiter) Exit(int) {}

func main() {
	var e exiter
	e.Exit(3)
	sys.Exit(1) // want "direct os.Exit in main skips deferred cleanup"
}
