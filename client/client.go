// Package client implements an RFC 1350 TFTP client: a lockstep
// block-by-block transfer engine over a single unconnected UDP socket,
// with retransmission, exponential backoff, and server transfer-ID
// tracking.
package client

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcoop/tftpc/internal/digest"
	"github.com/rcoop/tftpc/internal/protocol"
)

// Config holds the knobs for one client. Zero values select the defaults:
// port 69, octet mode, 6 retries, 50 ms initial backoff, system resolver.
type Config struct {
	Host     string
	Port     string // port number or service name
	Mode     string
	Resolver string // optional DNS server for host lookup, host[:port]
	Retries  int
	Backoff  time.Duration
	Logger   *logrus.Logger
}

// Client performs single-file TFTP transfers against one server.
type Client struct {
	cfg Config
	log *logrus.Logger
}

// New validates cfg and returns a Client ready to run transfers.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.Mode == "" {
		cfg.Mode = protocol.ModeOctet
	}
	if !protocol.ValidMode(cfg.Mode) {
		return nil, fmt.Errorf("invalid transfer mode %q", cfg.Mode)
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{cfg: cfg, log: cfg.Logger}, nil
}

// Get downloads remoteFile from the server into localFile.
func (c *Client) Get(remoteFile, localFile string) error {
	return c.transfer(dirRead, remoteFile, localFile)
}

// Put uploads localFile to the server under remoteFile.
func (c *Client) Put(remoteFile, localFile string) error {
	return c.transfer(dirWrite, remoteFile, localFile)
}

// transfer bootstraps a session and hands it to the engine: resolve the
// server, open socket and file, stage the initial request, run the loop.
// The socket and file are closed exactly once on every path.
func (c *Client) transfer(dir direction, remoteFile, localFile string) error {
	addrs, err := resolveEndpoints(c.cfg.Host, c.cfg.Port, c.cfg.Resolver)
	if err != nil {
		return err
	}

	conn, remote, err := openSocket(addrs)
	if err != nil {
		return err
	}
	defer conn.Close()

	var file *os.File
	if dir == dirRead {
		file, err = os.OpenFile(localFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	} else {
		file, err = os.Open(localFile)
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", localFile, err)
	}
	defer file.Close()

	sum := digest.New()
	s := &session{
		remote:  remote,
		dir:     dir,
		mode:    c.cfg.Mode,
		retries: c.cfg.Retries,
	}

	var initial protocol.Packet
	if dir == dirRead {
		s.wr = io.MultiWriter(file, sum)
		s.blkno = 1
		s.state = stateRRQSent
		initial = &protocol.ReadRequest{Filename: remoteFile, Mode: c.cfg.Mode}
	} else {
		s.rd = io.TeeReader(file, sum)
		s.blkno = 0
		s.state = stateWRQSent
		initial = &protocol.WriteRequest{Filename: remoteFile, Mode: c.cfg.Mode}
	}
	s.clearTimer()
	if err := s.load(initial); err != nil {
		return err
	}

	c.log.Debugf("%s %q from %s, mode %s", initial.Op(), remoteFile, remote, c.cfg.Mode)

	eng := &engine{
		tr:      &udpTransport{conn: conn},
		log:     c.log,
		retries: c.cfg.Retries,
		backoff: c.cfg.Backoff,
	}

	start := time.Now()
	if err := eng.run(s); err != nil {
		return err
	}
	elapsed := time.Since(start)

	c.log.Debugf("digest blake2b:%s", sum.Hex())
	c.log.Infof("transferred %s in %s (%s)",
		sizeString(s.transferred), durationString(elapsed), bandwidthString(s.transferred, elapsed))
	return nil
}
