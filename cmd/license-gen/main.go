// Command license-gen builds, signs and prints a license token.
//
// The identifier defaults to a fresh UUID so every invocation without -id
// mints a distinct license. Validity is given either as an absolute -until
// instant or as -days counted from the start of the window. Time flags
// accept unix seconds or RFC3339 text.
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

	"github.com/google/uuid"

	"signet/internal/license"
	"signet/pkg/contracts/domain"
)

type options struct {
	id         string
	plan       string
	from       string
	until      string
	days       int
	key        string
	keyFile    string
	serialized bool
	jsonOut    bool
}

// usageError marks failures caused by the invocation rather than by the
// signing operation; main exits 2 for these and 1 for everything else.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	var opts options
	flag.StringVar(&opts.id, "id", "", "license identifier (default: a new UUID)")
	flag.StringVar(&opts.plan, "plan", "", "license plan (required)")
	flag.StringVar(&opts.from, "from", "", "start of the validity window, unix seconds or RFC3339 (default: now)")
	flag.StringVar(&opts.until, "until", "", "end of the validity window, unix seconds or RFC3339")
	flag.IntVar(&opts.days, "days", 0, "validity in days counted from the window start (alternative to -until)")
	flag.StringVar(&opts.key, "key", "", "secret key as base64url text")
	flag.StringVar(&opts.keyFile, "key-file", "", "path to a file holding the secret key")
	flag.BoolVar(&opts.serialized, "serialized", false, "also print the canonical serialized record")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")
	flag.Parse()

	if err := run(os.Stdout, opts, time.Now().UTC()); err != nil {
		fmt.Fprintf(os.Stderr, "license-gen: %v\n", err)
		var uerr usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(out io.Writer, opts options, now time.Time) error {
	if opts.plan == "" {
		return usagef("-plan is required")
	}
	if opts.key == "" && opts.keyFile == "" {
		return usagef("one of -key or -key-file is required")
	}
	if opts.key != "" && opts.keyFile != "" {
		return usagef("-key and -key-file are mutually exclusive")
	}
	if opts.until == "" && opts.days == 0 {
		return usagef("one of -until or -days is required")
	}
	if opts.until != "" && opts.days != 0 {
		return usagef("-until and -days are mutually exclusive")
	}
	if opts.days < 0 {
		return usagef("-days must be positive")
	}

	keyText := opts.key
	if opts.keyFile != "" {
		data, err := os.ReadFile(opts.keyFile)
		if err != nil {
			return fmt.Errorf("reading key file: %w", err)
		}
		keyText = string(data)
	}
	secret, err := license.DecodeSecretKey(keyText)
	if err != nil {
		return err
	}
	keyring, err := license.NewKeyring(secret, nil)
	if err != nil {
		return err
	}

	id := opts.id
	if id == "" {
		id = uuid.New().String()
	}

	from := now
	if opts.from != "" {
		from, err = parseInstant(opts.from)
		if err != nil {
			return usagef("-from: %v", err)
		}
	}
	var until time.Time
	if opts.days > 0 {
		until = from.Add(time.Duration(opts.days) * 24 * time.Hour)
	} else {
		until, err = parseInstant(opts.until)
		if err != nil {
			return usagef("-until: %v", err)
		}
	}

	lic, err := license.New(id, opts.plan, from, until)
	if err != nil {
		return err
	}

	svc := license.NewService(keyring, license.SystemClock, quietLogger())
	token, err := svc.Sign(lic)
	if err != nil {
		return err
	}

	var serialized string
	if opts.serialized || opts.jsonOut {
		serialized, err = license.Serialize(lic)
		if err != nil {
			return err
		}
	}

	if opts.jsonOut {
		payload := map[string]any{
			"token": token,
			"license": domain.LicenseDetails{
				Identifier: lic.ID,
				Plan:       lic.Plan,
				ValidFrom:  lic.ValidFrom,
				ValidUntil: lic.ValidUntil,
			},
		}
		if opts.serialized {
			payload["serialized"] = serialized
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintln(out, token)
	if opts.serialized {
		fmt.Fprintln(out, serialized)
	}
	return nil
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
