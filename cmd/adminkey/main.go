// Package main prints a bcrypt hash of an admin key for ADMIN_KEY_HASH.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bis-events/gatepass/pkg/utils"
)

func main() {
	var key string
	flagSet := pflag.NewFlagSet("gatepass-adminkey", pflag.ContinueOnError)
	flagSet.StringVarP(&key, "key", "k", "", "admin key to hash (read from stdin when empty)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if key == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "no key given")
			os.Exit(2)
		}
		key = strings.TrimSpace(line)
	}
	hash, err := utils.HashSecret(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
