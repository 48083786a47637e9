package cipher

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Gateway wraps the external symmetric cipher used for at-rest encryption.
// Implementations must never place the passphrase on the command line.
type Gateway interface {
	// Encrypt reads the plaintext at src and writes the ciphertext to dst.
	Encrypt(src, passphrase, dst string) error
	// Decrypt reads the ciphertext at src and streams the plaintext to w.
	Decrypt(src, passphrase string, w io.Writer) error
}

// GpgGateway shells out to a gpg binary for symmetric encryption. The
// passphrase travels over stdin via --passphrase-fd 0, keeping it out of
// the process table.
type GpgGateway struct {
	Binary string
}

// NewGpgGateway validates that the binary exists and is executable.
func NewGpgGateway(binary string) (*GpgGateway, error) {
	info, err := os.Stat(binary)
	if err != nil {
		return nil, fmt.Errorf("cipher binary %s: %w", binary, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil, fmt.Errorf("cipher binary %s is not executable", binary)
	}
	return &GpgGateway{Binary: binary}, nil
}

func (g *GpgGateway) run(passphrase string, stdout io.Writer, args ...string) error {
	cmd := exec.Command(g.Binary, args...)
	cmd.Stdin = strings.NewReader(passphrase + "\n")
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("cipher: %w: %s", err, msg)
		}
		return fmt.Errorf("cipher: %w", err)
	}
	return nil
}

// Encrypt produces the ciphertext file at dst from the plaintext at src.
func (g *GpgGateway) Encrypt(src, passphrase, dst string) error {
	return g.run(passphrase, io.Discard,
		"--batch", "--no-tty", "--passphrase-fd", "0", "-o", dst, "-c", src)
}

// Decrypt streams the recovered plaintext of src into w.
func (g *GpgGateway) Decrypt(src, passphrase string, w io.Writer) error {
	return g.run(passphrase, w,
		"--batch", "--no-tty", "--passphrase-fd", "0", "-o", "-", src)
}
