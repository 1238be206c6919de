package guest

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// Client runs commands in the guest over SSH. Host keys are not checked:
// the guest is a locally-owned VM whose address comes from the host's own
// ARP table, and its host key changes on every reinstall.
type Client struct {
	// Addr is the guest IP address.
	Addr string

	// User is the guest login name.
	User string

	// KeyPath is the path to the private key used for authentication.
	KeyPath string
}

// Run executes command in the guest, streaming output to stdout/stderr.
func (c *Client) Run(command string, stdout, stderr io.Writer) error {
	keyData, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return fmt.Errorf("read SSH key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return fmt.Errorf("parse SSH key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(c.Addr, "22"), cfg)
	if err != nil {
		return fmt.Errorf("dial guest: %w", err)
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(command); err != nil {
		return fmt.Errorf("run command: %w", err)
	}
	return nil
}
