// Package tunnel forwards a local TCP port to a database host through an SSH
// bastion.
package tunnel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type Config struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	KeyFile string `yaml:"key_file"`
	// KnownHosts is an OpenSSH known_hosts file used to verify the bastion.
	// Empty skips host key verification.
	KnownHosts string `yaml:"known_hosts"`
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Tunnel is a running local listener whose connections are relayed to a
// remote address over one SSH client.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	log      *slog.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func signerFromFile(path string) (ssh.Signer, error) {
	if path == "" {
		return nil, errors.New("ssh key_file is required")
	}
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return signer, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHosts == "" {
		slog.Warn("ssh host key not verified, set known_hosts", "host", cfg.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("read known_hosts: %w", err)
	}
	return cb, nil
}

// Open dials the bastion described by cfg and starts forwarding a local port
// to remoteHost:remotePort.
func Open(cfg Config, remoteHost string, remotePort int) (*Tunnel, error) {
	signer, err := signerFromFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	client, err := ssh.Dial("tcp", cfg.addr(), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", cfg.addr(), err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("tunnel listen: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)),
		log:      slog.Default().With("component", "tunnel"),
	}
	t.wg.Add(1)
	go t.accept()
	return t, nil
}

// LocalAddr returns the host and port callers should connect to instead of
// the remote database.
func (t *Tunnel) LocalAddr() (string, int) {
	addr := t.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func (t *Tunnel) accept() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.log.Warn("accept failed", "err", err)
			}
			return
		}

		remote, err := t.client.Dial("tcp", t.remote)
		if err != nil {
			t.log.Warn("remote dial failed", "remote", t.remote, "err", err)
			local.Close()
			continue
		}

		go relay(local, remote)
		go relay(remote, local)
	}
}

func relay(dst, src net.Conn) {
	defer dst.Close()
	defer src.Close()
	io.Copy(dst, src)
}

// Close stops accepting and tears down the SSH client. It is safe to call more
// than once.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.listener.Close()
		err = t.client.Close()
		t.wg.Wait()
	})
	return err
}
