// Command license-verify checks a license token against a public key.
//
// The token is taken from -token, the first positional argument or stdin,
// in that order. Verification confirms authenticity and enforces the
// validity window: an authentic but predated or expired token fails. Use
// -at to evaluate the window at another instant than now.
//
// Exit codes: 0 the token is authentic and currently valid, 1 it is not,
// 2 the invocation itself was wrong.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"signet/internal/license"
	"signet/pkg/contracts/domain"
)

type options struct {
	pub     string
	pubFile string
	token   string
	at      string
	jsonOut bool
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	var opts options
	flag.StringVar(&opts.pub, "pub", "", "public key as base64url text")
	flag.StringVar(&opts.pubFile, "pub-file", "", "path to a file holding the public key")
	flag.StringVar(&opts.token, "token", "", "license token (default: first argument, then stdin)")
	flag.StringVar(&opts.at, "at", "", "instant to validate at, unix seconds or RFC3339 (default: now)")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")
	flag.Parse()

	if err := run(os.Stdout, os.Stdin, opts, flag.Args()); err != nil {
		if code := license.CodeOf(err); code != "" {
			fmt.Fprintf(os.Stderr, "license-verify: %s: %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "license-verify: %v\n", err)
		}
		var uerr usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(out io.Writer, in io.Reader, opts options, args []string) error {
	if opts.pub == "" && opts.pubFile == "" {
		return usagef("one of -pub or -pub-file is required")
	}
	if opts.pub != "" && opts.pubFile != "" {
		return usagef("-pub and -pub-file are mutually exclusive")
	}

	pubText := opts.pub
	if opts.pubFile != "" {
		data, err := os.ReadFile(opts.pubFile)
		if err != nil {
			return fmt.Errorf("reading public key file: %w", err)
		}
		pubText = string(data)
	}
	public, err := license.DecodePublicKey(pubText)
	if err != nil {
		return err
	}
	keyring, err := license.NewKeyring(nil, public)
	if err != nil {
		return err
	}

	token, err := resolveToken(in, opts.token, args)
	if err != nil {
		return err
	}

	clock := license.SystemClock
	if opts.at != "" {
		at, err := parseInstant(opts.at)
		if err != nil {
			return usagef("-at: %v", err)
		}
		clock = license.ClockFunc(func() time.Time { return at })
	}

	svc := license.NewService(keyring, clock, quietLogger())
	lic, remaining, err := svc.ValidateSigned(token)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		payload := map[string]any{
			"license": domain.LicenseDetails{
				Identifier: lic.ID,
				Plan:       lic.Plan,
				ValidFrom:  lic.ValidFrom,
				ValidUntil: lic.ValidUntil,
			},
			"status":            string(license.StatusActive),
			"remaining_seconds": remaining,
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintf(out, "identifier:  %s\n", lic.ID)
	fmt.Fprintf(out, "plan:        %s\n", lic.Plan)
	fmt.Fprintf(out, "valid_from:  %s\n", lic.ValidFrom.Format(time.RFC3339))
	fmt.Fprintf(out, "valid_until: %s\n", lic.ValidUntil.Format(time.RFC3339))
	fmt.Fprintf(out, "status:      %s\n", license.StatusActive)
	fmt.Fprintf(out, "remaining:   %ds\n", remaining)
	return nil
}

// resolveToken picks the token from the flag, the first positional
// argument or stdin, in that order.
func resolveToken(in io.Reader, flagToken string, args []string) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading token from stdin: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", usagef("no token given on the command line or stdin")
	}
	return token, nil
}

// parseInstant reads a time flag as unix seconds or RFC3339 text.
func parseInstant(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if sec, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither unix seconds nor RFC3339", text)
	}
	return t.UTC(), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}
