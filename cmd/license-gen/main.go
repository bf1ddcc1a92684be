// Command license-gen issues signed license blobs for a known device
// fingerprint. It is a vendor-side tool: the customer mails in their
// fingerprint (shown on the activation screen) and gets a blob back.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"beirutpos/internal/fingerprint"
	"beirutpos/internal/license"
)

func main() {
	holder := flag.String("holder", "", "licensee name embedded in the license")
	fp := flag.String("fingerprint", "", "target device fingerprint (hex)")
	local := flag.Bool("local", false, "issue against this machine's fingerprint")
	expires := flag.String("expires", "", "optional expiry date, YYYY-MM-DD (midnight UTC)")
	secret := flag.String("secret", "", "signing secret override (defaults to the built-in secret)")
	flag.Parse()

	if err := run(*holder, *fp, *local, *expires, *secret); err != nil {
		fmt.Fprintf(os.Stderr, "license-gen: %v\n", err)
		os.Exit(1)
	}
}

func run(holder, fp string, local bool, expires, secret string) error {
	if holder == "" {
		return fmt.Errorf("-holder is required")
	}

	switch {
	case local && fp != "":
		return fmt.Errorf("-local and -fingerprint are mutually exclusive")
	case local:
		fp = fingerprint.New(nil).Derive()
	case fp == "":
		return fmt.Errorf("one of -fingerprint or -local is required")
	}

	var expiresAt *time.Time
	if expires != "" {
		t, err := time.Parse("2006-01-02", expires)
		if err != nil {
			return fmt.Errorf("parsing -expires: %w", err)
		}
		expiresAt = &t
	}

	key := []byte(license.EmbeddedSecret)
	if secret != "" {
		key = []byte(secret)
	}

	blob, err := license.Issue(holder, fp, time.Now().UTC(), expiresAt, key)
	if err != nil {
		return fmt.Errorf("issuing license: %w", err)
	}

	fmt.Println(blob)
	return nil
}
