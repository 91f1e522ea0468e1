package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("relay")
	if len(os.Args) > 3 {
		os.Exit(2) // want "direct os.Exit in main skips deferred cleanup"
	}
	defer func() {
		os.Exit(0)
	}()
	helper()
}

func helper() {
	os.Exit(1)
}
