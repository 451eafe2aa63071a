package node

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"golang.org/x/crypto/ssh"

	"penchy/engine/composition"
	"penchy/engine/core"
)

// RemoteShell is the transport Node drives: connect once, then put files,
// run commands, and read files over that connection. Grounded on
// original_source/penchy/node.py's Node, which drives a paramiko
// SSHClient + SFTPClient the same way; PenchY drives golang.org/x/crypto/ssh
// directly and skips SFTP (see Put/ReadFile below).
type RemoteShell interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Put(ctx context.Context, local, remote string) error
	Exec(ctx context.Context, cmd string) (stdout, stderr string, err error)
	ReadFile(ctx context.Context, remote string) ([]byte, error)
}

// SSHShell is a RemoteShell over a single golang.org/x/crypto/ssh client
// connection. Put and ReadFile run through exec sessions piping through
// `cat` rather than opening an SFTP subsystem — spec.md's `put` only needs
// "local file becomes this remote file", and an exec session already gives
// that without adding github.com/pkg/sftp, a dependency outside both the
// teacher and the rest of the retrieval pack.
type SSHShell struct {
	setting *composition.NodeSetting
	client  *ssh.Client
}

// NewSSHShell builds a shell for setting; it does not connect.
func NewSSHShell(setting *composition.NodeSetting) *SSHShell {
	return &SSHShell{setting: setting}
}

func (s *SSHShell) Connected() bool { return s.client != nil }

// Connect dials setting.Host:SSHPort and authenticates with whichever of
// Password/Keyfile is configured (NodeSetting.Validate already requires
// at least one; Keyfile is used when both are set). Host key verification is intentionally not pinned:
// original_source/penchy/node.py's _setup_ssh uses AutoAddPolicy plus the
// system known_hosts, i.e. it trusts whatever the operator's environment
// already trusts; InsecureIgnoreHostKey reproduces that permissiveness
// without requiring a known_hosts file to exist on the controller.
func (s *SSHShell) Connect(ctx context.Context) error {
	auth, err := s.authMethod()
	if err != nil {
		return err
	}
	cfg := &ssh.ClientConfig{
		User:            s.setting.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // see doc comment
		Timeout:         15 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", s.setting.Host, s.setting.SSHPort)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return core.NewUnauthenticatedError(s.setting.Host, err)
	}
	s.client = client
	return nil
}

func (s *SSHShell) authMethod() (ssh.AuthMethod, error) {
	if s.setting.Keyfile != "" {
		key, err := os.ReadFile(s.setting.Keyfile)
		if err != nil {
			return nil, core.NewUnauthenticatedError(s.setting.Host, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, core.NewUnauthenticatedError(s.setting.Host, err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return ssh.Password(s.setting.Password), nil
}

func (s *SSHShell) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// resolveRemote joins remote against setting.Path unless it is already
// absolute (original_source/penchy/node.py::put's same rule).
func (s *SSHShell) resolveRemote(remote string) string {
	if path.IsAbs(remote) {
		return remote
	}
	return path.Join(s.setting.Path, remote)
}

func (s *SSHShell) Put(ctx context.Context, local, remote string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read local file %q: %w", local, err)
	}
	dest := s.resolveRemote(remote)
	cmd := fmt.Sprintf("mkdir -p %q && cat > %q", path.Dir(dest), dest)
	_, stderr, err := s.runPiped(ctx, cmd, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload to %q failed: %w (%s)", dest, err, stderr)
	}
	return nil
}

func (s *SSHShell) ReadFile(ctx context.Context, remote string) ([]byte, error) {
	stdout, stderr, err := s.Exec(ctx, fmt.Sprintf("cat %q", s.resolveRemote(remote)))
	if err != nil {
		return nil, fmt.Errorf("read remote file %q failed: %w (%s)", remote, err, stderr)
	}
	return []byte(stdout), nil
}

func (s *SSHShell) Exec(ctx context.Context, cmd string) (string, string, error) {
	return s.runPiped(ctx, cmd, nil)
}

func (s *SSHShell) runPiped(ctx context.Context, cmd string, stdin io.Reader) (string, string, error) {
	if s.client == nil {
		return "", "", fmt.Errorf("not connected")
	}
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), ctx.Err()
	case err := <-done:
		return stdout.String(), stderr.String(), err
	}
}
