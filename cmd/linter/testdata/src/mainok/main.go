package main

import (
	"fmt"
	"os"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			os.Exit(3)
		}
	}()
	os.Exit(run())
}

func run() int {
	fmt.Println("ok")
	return 0
}

type cli struct{}

func (cli) main() {
	os.Exit(1) // want "found usage of os.Exit outside of main function"
}
