package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rcoop/tftpc/client"
	"github.com/rcoop/tftpc/internal/protocol"
)

func usage() {
	fmt.Fprintln(os.Stderr,
		"Usage: tftpc -r|-w [-h host] [-p port] [-m mode] [-n resolver] [-v] <remote-file> [local-file]")
	flag.PrintDefaults()
}

func main() {
	host := flag.String("h", "localhost", "TFTP server host")
	port := flag.String("p", protocol.DefaultPort, "TFTP server port or service name")
	read := flag.Bool("r", false, "Download the remote file")
	write := flag.Bool("w", false, "Upload to the remote file")
	mode := flag.String("m", protocol.ModeOctet, "Transfer mode (octet, netascii, mail)")
	resolver := flag.String("n", "", "Resolve the host via this DNS server instead of the system resolver")
	verbose := flag.Bool("v", false, "Verbose diagnostics")
	flag.Usage = usage
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *read == *write {
		fmt.Fprintln(os.Stderr, "exactly one of -r and -w is required")
		usage()
		os.Exit(1)
	}
	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
		os.Exit(1)
	}

	// One name serves both sides; with two, the second names the file this
	// invocation creates or targets: the local copy for -r, the remote
	// name for -w.
	remoteFile := flag.Arg(0)
	localFile := remoteFile
	if flag.NArg() == 2 {
		if *read {
			localFile = flag.Arg(1)
		} else {
			localFile = remoteFile
			remoteFile = flag.Arg(1)
		}
	}

	c, err := client.New(client.Config{
		Host:     *host,
		Port:     *port,
		Mode:     *mode,
		Resolver: *resolver,
		Logger:   log,
	})
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if *read {
		err = c.Get(remoteFile, localFile)
	} else {
		err = c.Put(remoteFile, localFile)
	}
	if err != nil {
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			log.Errorf("transfer rejected: %v", remote)
		} else {
			log.Error(err)
		}
		os.Exit(1)
	}
}
