package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iamNilotpal/ember/internal/client"
	"github.com/iamNilotpal/ember/internal/protocol"
	"github.com/iamNilotpal/ember/pkg/options"
)

const usage = `usage: ember-client <command> [flags]

commands:
  set <key> <value>    store a key-value pair
  get <key>            print the value of a key
  remove <key>         delete a key

flags:
  --addr <host:port>   server address (default %s)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, options.DefaultListenAddr)
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	addr := flags.String("addr", options.DefaultListenAddr, "server address")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()

	conn, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember-client: cannot connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	var result protocol.Result

	switch command {
	case "set":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: ember-client set <key> <value>")
			os.Exit(2)
		}
		result, err = conn.Set(args[0], args[1])

	case "get":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: ember-client get <key>")
			os.Exit(2)
		}
		result, err = conn.Get(args[0])

	case "remove":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: ember-client remove <key>")
			os.Exit(2)
		}
		result, err = conn.Remove(args[0])

	default:
		fmt.Fprintf(os.Stderr, usage, options.DefaultListenAddr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ember-client: %v\n", err)
		os.Exit(1)
	}
	if !result.Ok() {
		fmt.Fprintf(os.Stderr, "ember-client: %s\n", result.Error)
		os.Exit(1)
	}

	if result.Value != nil {
		fmt.Println(*result.Value)
	} else {
		fmt.Println("(nil)")
	}
}
