package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/formlab/modelbridge/internal/gateway"
	"github.com/formlab/modelbridge/internal/logging"
)

// bridgectl sends one command to a running bridge and prints the result.
//
//	bridgectl -addr localhost:9876 get_layers
//	bridgectl create_cube '{"size": 10, "name": "crate"}'
func main() {
	logging.ConfigureRuntime()

	addr := flag.String("addr", "localhost:9876", "bridge address")
	timeout := flag.Duration("timeout", 15*time.Second, "per-command wait bound")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: bridgectl [flags] <command> [params-json]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	name := flag.Arg(0)

	var params map[string]any
	if flag.NArg() > 1 {
		if err := json.Unmarshal([]byte(flag.Arg(1)), &params); err != nil {
			fmt.Fprintf(os.Stderr, "bridgectl: invalid params: %v\n", err)
			os.Exit(2)
		}
	}

	cfg := gateway.DefaultClientConfig()
	cfg.Address = *addr
	cfg.CallTimeout = *timeout
	client, err := gateway.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.Call(ctx, name, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
