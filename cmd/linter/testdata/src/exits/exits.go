package exits

import (
	"log"
	"os"
)

func fail(err error) {
	if err != nil {
		panic(err) // want "found usage of panic outside of main function"
	}
	log.Fatalf("failed: %v", err) // want "found usage of log.Fatalf outside of main function"
}

func main() {
	os.Exit(2) // want "found usage of os.Exit outside of main function"
}

func quit() {
	exit := os.Exit
	exit(1)
	log.Fatal("bye") // want "found usage of log.Fatal outside of main function"
}
