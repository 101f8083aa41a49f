// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sharelock.
//
// go-sharelock is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	config string
	dir    string
}

// newCLIEnv writes a config with file storage and the cheapest accepted
// commitment cost under a temp dir.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sharelock.yaml")
	yaml := "storage:\n  backend: file\n  path: " + filepath.Join(dir, "data") + "\n" +
		"commitment:\n  algorithm: pbkdf2_sha256\n  iterations: 100000\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return &cliEnv{config: path, dir: dir}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

type createdScheme struct {
	ID     string   `json:"id"`
	K      int      `json:"k"`
	N      int      `json:"n"`
	Shares []string `json:"shares"`
}

func (e *cliEnv) create(t *testing.T, args ...string) createdScheme {
	t.Helper()
	out, err := e.run(t, append([]string{"scheme", "create", "-o", "json"}, args...)...)
	require.NoError(t, err)
	var s createdScheme
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	return s
}

func shareArgs(shares ...string) []string {
	var args []string
	for _, s := range shares {
		args = append(args, "-s", s)
	}
	return args
}

func TestSchemeCommands(t *testing.T) {
	env := newCLIEnv(t)

	s := env.create(t, "--name", "backups", "--field", "89", "-k", "2", "-n", "3")
	require.Len(t, s.Shares, 3)
	assert.Equal(t, 2, s.K)

	out, err := env.run(t, "scheme", "list")
	require.NoError(t, err)
	assert.Contains(t, out, s.ID)
	assert.Contains(t, out, "backups")

	out, err = env.run(t, "scheme", "show", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 3")
	assert.Contains(t, out, "2^89-1")

	out, err = env.run(t, append([]string{"shares", "verify", s.ID}, shareArgs(s.Shares[0], s.Shares[2])...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[1 3]")

	_, err = env.run(t, append([]string{"shares", "verify", s.ID}, shareArgs(s.Shares[1])...)...)
	assert.ErrorIs(t, err, sharelock.ErrInsufficientShares)

	other := env.create(t, "--name", "other", "--field", "89", "-k", "2", "-n", "2")
	_, err = env.run(t, append([]string{"shares", "verify", s.ID}, shareArgs(other.Shares...)...)...)
	assert.ErrorIs(t, err, sharelock.ErrCommitmentMismatch)

	out, err = env.run(t, "scheme", "refresh", s.ID, "-o", "json")
	require.NoError(t, err)
	var after createdScheme
	require.NoError(t, json.Unmarshal([]byte(out), &after))
	assert.NotEqual(t, s.Shares, after.Shares)

	_, err = env.run(t, append([]string{"shares", "verify", s.ID}, shareArgs(s.Shares[:2]...)...)...)
	assert.ErrorIs(t, err, sharelock.ErrCommitmentMismatch)

	_, err = env.run(t, "scheme", "delete", s.ID)
	require.NoError(t, err)
	_, err = env.run(t, "scheme", "show", s.ID)
	assert.ErrorIs(t, err, sharelock.ErrSchemeNotFound)
}

func TestSchemeCreate_Validation(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "scheme", "create", "-k", "2", "-n", "3")
	assert.Error(t, err, "name is required")

	_, err = env.run(t, "scheme", "create", "--name", "x", "-k", "4", "-n", "3")
	assert.ErrorIs(t, err, sharelock.ErrInvalidParameters)

	_, err = env.run(t, "scheme", "create", "--name", "x", "--field", "61")
	assert.ErrorIs(t, err, sharelock.ErrInvalidParameters)
}

func TestAssetCommands(t *testing.T) {
	env := newCLIEnv(t)
	s := env.create(t, "--name", "ledger", "--field", "127", "-k", "3", "-n", "5")

	plain := filepath.Join(env.dir, "ledger.csv")
	require.NoError(t, os.WriteFile(plain, []byte("date,amount\n"), 0o600))

	sharesFile := filepath.Join(env.dir, "shares.txt")
	body := "# custodians a, c, e\n" + s.Shares[0] + "\n\n" + s.Shares[2] + "\n" + s.Shares[4] + "\n"
	require.NoError(t, os.WriteFile(sharesFile, []byte(body), 0o600))

	out, err := env.run(t, "asset", "encrypt", "ledger", plain, "--scheme", s.ID, "--shares-file", sharesFile)
	require.NoError(t, err)
	assert.Contains(t, out, plain+".enc")
	_, err = os.Stat(plain)
	assert.True(t, os.IsNotExist(err))

	out, err = env.run(t, "scheme", "assets", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "ledger")

	_, err = env.run(t, "scheme", "delete", s.ID)
	assert.ErrorIs(t, err, sharelock.ErrSchemeInUse)

	_, err = env.run(t, append([]string{"asset", "decrypt", "ledger"}, shareArgs(s.Shares[0], s.Shares[1])...)...)
	assert.ErrorIs(t, err, sharelock.ErrInsufficientShares)

	out, err = env.run(t, append([]string{"asset", "decrypt", "ledger", "-o", "json"}, shareArgs(s.Shares[1], s.Shares[3], s.Shares[4])...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "\"decrypted\"")

	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "date,amount\n", string(data))

	_, err = env.run(t, "asset", "show", "ledger")
	assert.ErrorIs(t, err, sharelock.ErrNotEncrypted)
	_, err = env.run(t, "asset", "unlink", "ledger")
	assert.ErrorIs(t, err, sharelock.ErrNotEncrypted)
}

func TestFileAndSecretCommands(t *testing.T) {
	env := newCLIEnv(t)
	s := env.create(t, "--name", "loose", "--field", "107", "-k", "2", "-n", "4")

	plain := filepath.Join(env.dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("remember the milk"), 0o600))

	_, err := env.run(t, append([]string{"file", "encrypt", plain, "--field", "107", "--keep"}, shareArgs(s.Shares[0], s.Shares[1])...)...)
	require.NoError(t, err)
	_, err = os.Stat(plain)
	require.NoError(t, err, "--keep leaves the plaintext")
	require.NoError(t, os.Remove(plain))

	_, err = env.run(t, append([]string{"file", "decrypt", plain + ".enc", "--field", "107"}, shareArgs(s.Shares[2], s.Shares[3])...)...)
	require.NoError(t, err)
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(data))
	_, err = os.Stat(plain + ".enc")
	assert.True(t, os.IsNotExist(err))

	first, err := env.run(t, append([]string{"secret", "recover", "--field", "107"}, shareArgs(s.Shares[0], s.Shares[3])...)...)
	require.NoError(t, err)
	second, err := env.run(t, append([]string{"secret", "recover", "--field", "107"}, shareArgs(s.Shares[1], s.Shares[2])...)...)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = env.run(t, "secret", "recover", "--field", "107")
	assert.ErrorIs(t, err, sharelock.ErrInsufficientShares)
	_, err = env.run(t, "secret", "recover", "-s", "1-@@", "-s", "2-MQ==")
	assert.ErrorIs(t, err, sharelock.ErrMalformedShare)
}

func TestSharesFromStdin(t *testing.T) {
	env := newCLIEnv(t)
	s := env.create(t, "--name", "stdin", "-k", "2", "-n", "2")

	encoded, err := json.Marshal([]map[string]interface{}{
		{"index": 1, "value": strings.SplitN(s.Shares[0], "-", 2)[1]},
		{"index": 2, "value": strings.SplitN(s.Shares[1], "-", 2)[1]},
	})
	require.NoError(t, err)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewReader(encoded))
	cmd.SetArgs([]string{"--config", env.config, "shares", "verify", s.ID, "--shares-file", "-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "[1 2]")
}

func TestParseShares(t *testing.T) {
	shares, err := parseShares([]byte("  \n# comment\n3-MTIzNDU=\n  4-MTIzNDU=  \n"))
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, 3, shares[0].Index)
	assert.Equal(t, 4, shares[1].Index)

	shares, err = parseShares([]byte(`[{"index":5,"value":"MTIzNDU="}]`))
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, int64(12345), shares[0].Value.Int64())

	_, err = parseShares([]byte("1-MQ==\nbogus\n"))
	assert.ErrorIs(t, err, sharelock.ErrMalformedShare)
	assert.Contains(t, err.Error(), "line 2")

	_, err = parseShares([]byte("[{"))
	assert.ErrorIs(t, err, sharelock.ErrMalformedShare)
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sharelock version "+Version)

	out, err = env.run(t, "version", "-o", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestExecute_UnknownOutput(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "scheme", "list", "-o", "yaml")
	assert.Error(t, err)
}
