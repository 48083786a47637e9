package cipher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScript parses the gpg-style arguments, reads the passphrase from
// stdin and "encrypts" by concatenating passphrase and plaintext, so the
// test can verify what crossed the process boundary.
const stubScript = `#!/bin/sh
read -r pass
out=""
src=""
while [ $# -gt 0 ]; do
	case "$1" in
	-o) out="$2"; shift 2 ;;
	-c) src="$2"; shift 2 ;;
	*) src="$1"; shift ;;
	esac
done
if [ "$out" = "-" ]; then
	printf '%s|' "$pass"
	cat "$src"
else
	{ printf '%s|' "$pass"; cat "$src"; } > "$out"
fi
`

const failScript = `#!/bin/sh
echo "decryption failed: bad passphrase" >&2
exit 2
`

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpg-stub")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNewGpgGateway(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		_, err := NewGpgGateway(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("not executable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
		_, err := NewGpgGateway(path)
		assert.Error(t, err)
	})

	t.Run("executable", func(t *testing.T) {
		_, err := NewGpgGateway(writeStub(t, stubScript))
		assert.NoError(t, err)
	})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	gw, err := NewGpgGateway(writeStub(t, stubScript))
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "plain.txt")
	dst := filepath.Join(dir, "plain.txt.gpg")
	require.NoError(t, os.WriteFile(src, []byte("attack at dawn"), 0o644))

	require.NoError(t, gw.Encrypt(src, "hunter2", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hunter2|attack at dawn", string(data))

	var out bytes.Buffer
	require.NoError(t, gw.Decrypt(dst, "hunter2", &out))
	assert.Equal(t, "hunter2|hunter2|attack at dawn", out.String())
}

func TestGatewaySurfacesStderr(t *testing.T) {
	gw, err := NewGpgGateway(writeStub(t, failScript))
	require.NoError(t, err)

	var out bytes.Buffer
	err = gw.Decrypt("whatever", "pass", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad passphrase")
}
