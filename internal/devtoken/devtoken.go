// Package devtoken mints access tokens for local testing, standing in for
// the identity provider's login flow.
package devtoken

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/server/auth"
	"golang.org/x/term"
)

const secretEnv = "RELAYTALE_SECRET_KEY"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinFd is a test seam for the terminal file descriptor.
var stdinFd = func() int { return int(os.Stdin.Fd()) }

// Run parses args, asks for whatever is missing and writes the signed token
// to w.
func Run(args []string, in io.Reader, w io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(w)
	subject := fs.String("sub", "", "external identity (JWT subject)")
	name := fs.String("name", "", "display name (optional)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token validity")
	secret := fs.String("s", "", "JWT signing secret (default $"+secretEnv+", else prompted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(in)

	if *subject == "" {
		s, err := GetSimpleText(reader, "External identity", w)
		if err != nil {
			return err
		}
		*subject = s
	}
	if *subject == "" {
		return errors.New("external identity is required")
	}

	key := *secret
	if key == "" {
		key = os.Getenv(secretEnv)
	}
	if key == "" {
		pw, err := GetPassword(w)
		if err != nil {
			return err
		}
		key = string(pw)
	}
	if key == "" {
		return errors.New("signing secret is required")
	}

	token, err := auth.GenerateToken(*subject, *name, []byte(key), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// If EOF occurs after some input was read, the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads the signing secret from the terminal without echo.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Signing secret: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
