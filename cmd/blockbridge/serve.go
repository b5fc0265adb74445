package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
	"github.com/chazu/blockbridge/remote"
)

// handleServeCommand processes `blockbridge serve`.
func handleServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":4567", "Listen address")
	ttl := fs.Duration("handle-ttl", 30*time.Minute, "Release handles idle for this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := remote.NewServer(managed.Env(), remote.WithHandleTTL(*ttl/6, *ttl))
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	fmt.Printf("Serving %s on %s\n", srv.Env().Name(), ln.Addr())
	for _, name := range managed.Env().Backend().(*managed.Backend).Classes().Names() {
		fmt.Printf("  %s\n", name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx, ln)
}

// handleCallCommand processes `blockbridge call`. Arguments that parse
// as numbers are sent as numbers.
// Usage:
//
//	blockbridge call blockbridge.Label new L1 5 3
//	blockbridge call -url http://host:4567 blockbridge.Label new L1 5 3
func handleCallCommand(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	url := fs.String("url", "http://localhost:4567", "Server URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("call needs a name and a method")
	}

	reg := proxy.NewRegistry()
	remote.Register(reg, "remote", *url)
	env, err := reg.Find("remote")
	if err != nil {
		return err
	}
	defer env.Backend().(*remote.Backend).Close()

	target, err := env.FindProxy(fs.Arg(0))
	if err != nil {
		return err
	}
	callArgs := make([]any, 0, fs.NArg()-2)
	for _, a := range fs.Args()[2:] {
		callArgs = append(callArgs, parseArg(a))
	}
	result, err := target.Call(fs.Arg(1), callArgs...)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", result.ClassName(), result)
	return nil
}

func parseArg(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
