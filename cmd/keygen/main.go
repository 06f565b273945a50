// Command keygen generates an Ed25519 license key pair and writes both
// halves as base64url text files. The secret key file is created with
// owner-only permissions; the public key is also printed so it can be
// pasted straight into a verifier configuration.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"signet/internal/config"
	"signet/internal/license"
)

func main() {
	dir := flag.String("dir", ".", "directory to write the key files into")
	keyName := flag.String("key", config.DefaultSecretKeyFile, "secret key file name")
	pubName := flag.String("pub", config.DefaultPublicKeyFile, "public key file name")
	force := flag.Bool("force", false, "overwrite existing key files")
	flag.Parse()

	if err := run(os.Stdout, *dir, *keyName, *pubName, *force); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, dir, keyName, pubName string, force bool) error {
	keyPath := filepath.Join(dir, keyName)
	pubPath := filepath.Join(dir, pubName)

	if !force {
		for _, path := range []string{keyPath, pubPath} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use -force to overwrite)", path)
			}
		}
	}

	keyring, err := license.GenerateKeyring(nil)
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	if err := os.WriteFile(keyPath, []byte(keyring.Secret.Encode()+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing secret key: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(keyring.Public.Encode()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	fmt.Fprintf(out, "secret key written to %s\n", keyPath)
	fmt.Fprintf(out, "public key written to %s\n", pubPath)
	fmt.Fprintf(out, "public key: %s\n", keyring.Public.Encode())
	return nil
}
