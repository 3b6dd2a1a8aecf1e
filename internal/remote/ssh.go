package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/skeema/knownhosts"
	sshagent "github.com/xanzy/ssh-agent"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// SSHOptions configures DialSSH. Zero values fall back to ~/.ssh/config,
// then to the usual OpenSSH defaults.
type SSHOptions struct {
	// Host is an ssh_config alias or a plain host name
	Host       string
	User       string
	Port       int
	KnownHosts string
	Timeout    time.Duration
}

// SSH is a Channel over one SSH connection; every Run opens a new session
type SSH struct {
	alias  string
	client *ssh.Client
	agent  net.Conn
	log    *zap.Logger
}

// DialSSH connects to opts.Host, authenticating with the running ssh-agent
// and any IdentityFile configured for the host
func DialSSH(ctx context.Context, opts SSHOptions, log *zap.Logger) (*SSH, error) {
	if log == nil {
		log = zap.NewNop()
	}
	alias := opts.Host
	hostname := ssh_config.Get(alias, "HostName")
	if hostname == "" {
		hostname = alias
	}

	user := opts.User
	if user == "" {
		user = ssh_config.Get(alias, "User")
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	port := opts.Port
	if port == 0 {
		if p, err := strconv.Atoi(ssh_config.Get(alias, "Port")); err == nil {
			port = p
		} else {
			port = 22
		}
	}
	addr := net.JoinHostPort(hostname, strconv.Itoa(port))

	khPath := opts.KnownHosts
	if khPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		khPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	kh, err := knownhosts.New(khPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", khPath, err)
	}

	s := &SSH{alias: alias, log: log}
	auth, err := s.authMethods(alias)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	cfg := &ssh.ClientConfig{
		User:              user,
		Auth:              auth,
		HostKeyCallback:   kh.HostKeyCallback(),
		HostKeyAlgorithms: kh.HostKeyAlgorithms(addr),
		Timeout:           timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.closeAgent()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		s.closeAgent()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	s.client = ssh.NewClient(c, chans, reqs)
	log.Debug("ssh connected", zap.String("host", alias), zap.String("addr", addr), zap.String("user", user))
	return s, nil
}

func (s *SSH) authMethods(alias string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if sshagent.Available() {
		ag, conn, err := sshagent.New()
		if err != nil {
			s.log.Warn("ssh-agent unavailable", zap.Error(err))
		} else {
			s.agent = conn
			methods = append(methods, ssh.PublicKeysCallback(ag.Signers))
		}
	}

	var signers []ssh.Signer
	for _, path := range ssh_config.GetAll(alias, "IdentityFile") {
		path = expandHome(path)
		pem, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			// Passphrase-protected keys are expected to be loaded in the agent
			s.log.Debug("skipping identity", zap.String("path", path), zap.Error(err))
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, errors.New("no ssh credentials: start ssh-agent or configure an IdentityFile")
	}
	return methods, nil
}

func (s *SSH) Run(ctx context.Context, line string, stdin io.Reader) (Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var out syncBuffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = stdin

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
			session.Close()
		case <-done:
		}
	}()

	err = session.Run(line)
	res := Result{Output: out.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	return res, nil
}

func (s *SSH) Host() string {
	return s.alias
}

func (s *SSH) Close() error {
	s.closeAgent()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SSH) closeAgent() {
	if s.agent != nil {
		s.agent.Close()
		s.agent = nil
	}
}

// syncBuffer serialises writes from the session's stdout and stderr copiers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
