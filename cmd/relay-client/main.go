// Command relay-client drives the relay protocol against a server over
// UDP: list, get, stat, hash, readlink, and the housekeeping opcodes,
// grounded in the teacher's cmd/cli-client (flag-driven, single
// subcommand per invocation) generalized from its REQ/NACK file
// transfer to internal/client's Get/GetFunc/List/Stat/Hash/Readlink
// calls.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/iluksbr/filerelay/internal/client"
	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relaylog"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/transport/udp"
	"github.com/iluksbr/filerelay/internal/wire"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  relay-client -addr host:port list <dir>")
	fmt.Println("  relay-client -addr host:port [-o outfile] get <path>")
	fmt.Println("  relay-client -addr host:port stat <path>")
	fmt.Println("  relay-client -addr host:port hash <path>")
	fmt.Println("  relay-client -addr host:port readlink <path>")
	fmt.Println("  relay-client -addr host:port maxpacket")
	fmt.Println("  relay-client -addr host:port reset")
	fmt.Println("  relay-client -addr host:port noop")
	os.Exit(2)
}

func main() {
	defaults := config.DefaultClientSettings()

	addr := flag.String("addr", fmt.Sprintf("%s:%d", defaults.Host, defaults.Port), "Server host:port")
	out := flag.String("o", "", "Output path for get (default: stdout)")
	timeout := flag.Duration("timeout", defaults.Timeout, "Per-exchange read timeout")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}
	cmd, rest := args[0], args[1:]

	level := logrus.WarnLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	log := relaylog.Component(relaylog.New(os.Stderr, level), "relay-client")

	transport, err := udp.Dial(*addr)
	if err != nil {
		log.WithError(err).Fatal("dialing server")
	}
	defer transport.Close()
	transport.SetReadTimeout(*timeout)

	metrics := relaymetrics.NewClientMetrics(prometheus.NewRegistry())
	c := client.New(transport, metrics, log)

	if err := run(c, cmd, rest, *out); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *client.Client, cmd string, args []string, out string) error {
	switch cmd {
	case "noop":
		return c.Noop()

	case "reset":
		return c.Reset()

	case "maxpacket":
		n, err := c.ServerMaxPacket()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	case "list":
		if len(args) != 1 {
			usage()
		}
		names, isFile, err := c.List(args[0])
		if err != nil {
			return err
		}
		if isFile {
			fmt.Println("(regular file)")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil

	case "stat":
		if len(args) != 1 {
			usage()
		}
		rec, err := c.Stat(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("size=%d mode=%o mtime=%d ctime=%d flags=%02x\n", rec.Size, rec.Mode, rec.Mtime, rec.Ctime, rec.Flags)
		return nil

	case "hash":
		if len(args) != 1 {
			usage()
		}
		h, err := c.Hash(args[0])
		if err != nil {
			return err
		}
		fmt.Println(h)
		return nil

	case "readlink":
		if len(args) != 1 {
			usage()
		}
		target, err := c.Readlink(args[0])
		if err != nil {
			return err
		}
		fmt.Println(target)
		return nil

	case "get":
		if len(args) != 1 {
			usage()
		}
		return runGet(c, args[0], out)

	default:
		usage()
		return nil
	}
}

func runGet(c *client.Client, path, out string) error {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	var written int64
	var writeErr error
	err := c.GetFunc(wire.OpGet, []byte(path), func(chunk []byte) {
		if writeErr != nil {
			return
		}
		n, werr := w.Write(chunk)
		written += int64(n)
		writeErr = werr
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if out != "" {
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", written, out)
	}
	return nil
}
