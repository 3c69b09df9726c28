// Package files reads and writes the CSV text files the schedule is exchanged in.
package files

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrNotText = errors.New("file is not a text file")

// MaxFileSize bounds how much of an input is read.
const MaxFileSize = 32 << 20

// DecodeText sniffs data and decodes it to a Go string. A UTF-8 or UTF-16
// byte order mark selects the encoding and is removed; without one UTF-8 is
// assumed.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if !isText(data) {
		return "", errors.Wrapf(ErrNotText, "detected %s", mimetype.Detect(data).String())
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", errors.Wrap(err, "decode text")
	}
	return strings.ToValidUTF8(string(out), "\uFFFD"), nil
}

func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ReadText decodes everything from r, up to MaxFileSize bytes.
func ReadText(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", errors.Wrap(err, "read input")
	}
	if len(data) > MaxFileSize {
		return "", errors.Errorf("input exceeds %d bytes", MaxFileSize)
	}
	return DecodeText(data)
}

// ReadTextFile reads path, or standard input when path is "-".
func ReadTextFile(path string) (string, error) {
	if path == "-" {
		return ReadText(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	text, err := ReadText(f)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return text, nil
}

// WriteTextFile replaces path atomically with content. A path of "-" writes
// to standard output.
func WriteTextFile(path, content string) error {
	return WriteFile(path, []byte(content))
}

func WriteFile(path string, data []byte) error {
	if path == "-" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(data))
		return errors.Wrap(err, "write stdout")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
