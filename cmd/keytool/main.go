// Command keytool manages the encrypted keystore swapbot reads with KEYSTORE_DIR.
//
//	keytool import -dir ./keys      # prompts for the hex key and a passphrase
//	keytool list -dir ./keys
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/ligun0805/swap-runner/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keytool import|list -dir <keystore dir>")
}

func defaultDir() string {
	if v := strings.TrimSpace(os.Getenv("KEYSTORE_DIR")); v != "" {
		return v
	}
	return "keystore"
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", defaultDir(), "keystore directory (KEYSTORE_DIR)")
	fromEnv := fs.String("env", "", "read the hex key from this env var instead of prompting")
	_ = fs.Parse(args)

	var hexKey string
	if *fromEnv != "" {
		hexKey = os.Getenv(*fromEnv)
		if strings.TrimSpace(hexKey) == "" {
			return fmt.Errorf("%s is empty", *fromEnv)
		}
	} else {
		var err error
		if hexKey, err = readPassword("Private key (hex): "); err != nil {
			return err
		}
	}
	pass, err := readPassword("New passphrase: ")
	if err != nil {
		return err
	}
	again, err := readPassword("Repeat passphrase: ")
	if err != nil {
		return err
	}
	if pass != again {
		return errors.New("passphrases do not match")
	}
	if pass == "" {
		return errors.New("empty passphrase")
	}
	addr, err := wallet.ImportHex(*dir, hexKey, pass, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return err
	}
	fmt.Println("imported", addr.Hex(), "into", *dir)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dir := fs.String("dir", defaultDir(), "keystore directory (KEYSTORE_DIR)")
	_ = fs.Parse(args)

	if _, err := os.Stat(*dir); err != nil {
		return err
	}
	addrs := wallet.ListKeystore(*dir)
	if len(addrs) == 0 {
		fmt.Println("no keys in", *dir)
		return nil
	}
	for i, a := range addrs {
		fmt.Printf("%2d. %s\n", i+1, a.Hex())
	}
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
