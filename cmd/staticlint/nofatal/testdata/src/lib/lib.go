package lib

import (
	"errors"
	"log"
	"os"
)

func load(path string) error {
	if path == "" {
		log.Fatal("no path") // want `log.Fatal terminates the process`
	}
	if _, err := os.Stat(path); err != nil {
		log.Fatalf("stat: %v", err) // want `log.Fatalf terminates the process`
	}
	l := log.New(os.Stderr, "", 0)
	l.Fatalln("bye") // want `log.Fatalln terminates the process`
	os.Exit(3)       // want `os.Exit terminates the process`
	return errors.New("unreachable")
}

func fine() {
	log.Println("ok")
	_ = os.Getenv("HOME")
}
