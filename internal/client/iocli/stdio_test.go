package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdio_ReadInput(t *testing.T) {
	var out bytes.Buffer
	s := NewStdioWith(strings.NewReader("alice\n  secret-pass  \nlast"), &out)

	name, err := s.ReadInput("Username: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	// не терминал: пароль читается как обычная строка
	pw, err := s.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret-pass", pw)

	last, err := s.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "last", last, "line without trailing newline")

	_, err = s.ReadInput("> ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "Username: Password: > > ", out.String())
}

func TestStdio_Output(t *testing.T) {
	var out bytes.Buffer
	s := NewStdioWith(strings.NewReader(""), &out)

	s.Println("hello", "world")
	s.Printf("%d-%s\n", 1, "abc")
	_, err := s.Write([]byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\n1-abc\nraw", out.String())
}

func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio())
}
