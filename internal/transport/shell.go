package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultConnectTimeout bounds SSH dial and handshake when neither the shell
// nor the target sets one.
const defaultConnectTimeout = 10 * time.Second

const chunkSize = 4 * 1024

// Shell is the production Transport. Remote targets get one SSH session per
// call; local targets run through `sh -c`.
type Shell struct {
	Timeout         time.Duration
	KnownHostsPath  string
	InsecureHostKey bool
}

var _ Transport = (*Shell)(nil)

func NewShell() *Shell {
	return &Shell{Timeout: defaultConnectTimeout}
}

func (s *Shell) Execute(ctx context.Context, target Target, command string) <-chan Event {
	events := make(chan Event, 1)
	go func() {
		defer close(events)
		if target.Local() {
			s.runLocal(ctx, command, events)
			return
		}
		s.runRemote(ctx, target, command, events)
	}()
	return events
}

// TestConnectivity opens and immediately tears down one session. Local
// targets are always reachable.
func (s *Shell) TestConnectivity(ctx context.Context, target Target) error {
	if target.Local() {
		return nil
	}
	client, err := s.dial(ctx, target)
	if err != nil {
		return &ConnError{Target: target.label(), Err: err}
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return &ConnError{Target: target.label(), Err: err}
	}
	return session.Close()
}

func (s *Shell) runLocal(ctx context.Context, command string, events chan<- Event) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: "local", Err: err}}
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: "local", Err: err}}
		return
	}
	if err := cmd.Start(); err != nil {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: "local", Err: err}}
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go pump(&wg, stdout, EventStdout, events)
	go pump(&wg, stderr, EventStderr, events)
	wg.Wait()

	err = cmd.Wait()
	if ctx.Err() != nil {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: "local", Err: ctx.Err()}}
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		events <- Event{Kind: EventExit, ExitCode: exitErr.ExitCode()}
		return
	}
	if err != nil {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: "local", Err: err}}
		return
	}
	events <- Event{Kind: EventExit}
}

func (s *Shell) runRemote(ctx context.Context, target Target, command string, events chan<- Event) {
	fail := func(err error) {
		events <- Event{Kind: EventConnError, Err: &ConnError{Target: target.label(), Err: err}}
	}

	client, err := s.dial(ctx, target)
	if err != nil {
		fail(err)
		return
	}
	defer client.Close()

	// Closing the client unblocks Wait when the caller's deadline fires.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-watchDone:
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		fail(err)
		return
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		fail(err)
		return
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		fail(err)
		return
	}
	if err := session.Start(command); err != nil {
		fail(err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go pump(&wg, stdout, EventStdout, events)
	go pump(&wg, stderr, EventStderr, events)
	wg.Wait()

	err = session.Wait()
	if ctx.Err() != nil {
		fail(ctx.Err())
		return
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		events <- Event{Kind: EventExit, ExitCode: exitErr.ExitStatus()}
		return
	}
	if err != nil {
		fail(err)
		return
	}
	events <- Event{Kind: EventExit}
}

// pump copies one stream into chunk events, preserving per-stream order.
func pump(wg *sync.WaitGroup, r io.Reader, kind EventKind, events chan<- Event) {
	defer wg.Done()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			events <- Event{Kind: kind, Data: chunk}
		}
		if err != nil {
			return
		}
	}
}

func (s *Shell) dial(ctx context.Context, target Target) (*ssh.Client, error) {
	config, err := s.clientConfig(target)
	if err != nil {
		return nil, err
	}

	address := target.Address
	if _, _, splitErr := net.SplitHostPort(address); splitErr != nil {
		port := target.Port
		if port <= 0 {
			port = 22
		}
		address = net.JoinHostPort(address, strconv.Itoa(port))
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < config.Timeout {
			config.Timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", address, config.Timeout)
	if err != nil {
		return nil, err
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (s *Shell) clientConfig(target Target) (*ssh.ClientConfig, error) {
	user := target.User
	if user == "" {
		user = "root"
	}

	if target.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required for host %s", target.label())
	}
	privateKey, err := os.ReadFile(target.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	hostKeyCallback, err := s.hostKeyCallback(target)
	if err != nil {
		return nil, err
	}

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = s.Timeout
	}
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func (s *Shell) hostKeyCallback(target Target) (ssh.HostKeyCallback, error) {
	if s.InsecureHostKey || target.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := target.KnownHostsPath
	if path == "" {
		path = s.KnownHostsPath
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(path)
}
