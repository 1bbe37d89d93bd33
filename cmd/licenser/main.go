// licenser is the offline command line tool: key generation, license
// signing from YAML templates, verification, and inspection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"licenser/internal/security"
	"licenser/internal/services"
)

const passphraseEnv = "LICENSER_PASSPHRASE"

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch flag.Arg(0) {
	case "keygen":
		err = runKeygen(flag.Args()[1:])
	case "sign":
		err = runSign(flag.Args()[1:])
	case "verify":
		err = runVerify(flag.Args()[1:])
	case "inspect":
		err = runInspect(flag.Args()[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "licenser: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: licenser <command> [flags]

Commands:
  keygen   generate an ECDSA P-521 key pair
  sign     build and sign a license from a YAML template
  verify   verify a signed license document
  inspect  print the parsed contents of a license document

Set %s to protect the private key with a passphrase (keygen)
or to unlock an encrypted private key (sign).
`, passphraseEnv)
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "license", "output file prefix; writes <prefix>_private.pem and <prefix>_public.pem")
	if err := fs.Parse(args); err != nil {
		return err
	}

	priv, err := security.GenerateKeyPair()
	if err != nil {
		return err
	}

	privPEM, err := security.EncodePrivateKey(priv, os.Getenv(passphraseEnv))
	if err != nil {
		return err
	}
	pubPEM, err := security.EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}

	privPath := *out + "_private.pem"
	pubPath := *out + "_public.pem"
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s and %s\n", privPath, pubPath)
	return nil
}

// licenseTemplate is the YAML shape of a license request. Expiration is an
// RFC 3339 string; omit it for a license that never expires.
type licenseTemplate struct {
	Kind        string            `yaml:"kind"`
	Quantity    int               `yaml:"quantity"`
	Expiration  string            `yaml:"expiration"`
	Customer    *customerTemplate `yaml:"customer"`
	Attributes  map[string]string `yaml:"attributes"`
	Features    map[string]string `yaml:"features"`
	Version     int               `yaml:"version"`
	Sublicenses []licenseTemplate `yaml:"sublicenses"`
}

type customerTemplate struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func (t *licenseTemplate) toRequest() (*services.IssueRequest, error) {
	req := &services.IssueRequest{
		Kind:       t.Kind,
		Quantity:   t.Quantity,
		Attributes: t.Attributes,
		Features:   t.Features,
		Version:    t.Version,
	}
	if t.Expiration != "" {
		exp, err := time.Parse(time.RFC3339, t.Expiration)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration %q: %w", t.Expiration, err)
		}
		req.Expiration = &exp
	}
	if t.Customer != nil {
		req.Customer = &services.CustomerSpec{Name: t.Customer.Name, Email: t.Customer.Email}
	}
	for i := range t.Sublicenses {
		sub, err := t.Sublicenses[i].toRequest()
		if err != nil {
			return nil, fmt.Errorf("sublicense %d: %w", i, err)
		}
		req.Sublicenses = append(req.Sublicenses, *sub)
	}
	return req, nil
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	template := fs.String("template", "license.yaml", "YAML license template")
	keyFile := fs.String("key", "license_private.pem", "private key file")
	out := fs.String("out", "", "output file; stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*template)
	if err != nil {
		return err
	}
	var tmpl licenseTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("parse template %s: %w", *template, err)
	}
	req, err := tmpl.toRequest()
	if err != nil {
		return err
	}

	keyPEM, err := os.ReadFile(*keyFile)
	if err != nil {
		return err
	}
	priv, err := security.DecodePrivateKey(keyPEM, os.Getenv(passphraseEnv))
	if err != nil {
		return fmt.Errorf("decode private key %s: %w", *keyFile, err)
	}

	svc := services.NewLicenseService(security.NewECDSASigner(), priv, &priv.PublicKey, quietLogger(), nil)
	resp, err := svc.Issue(context.Background(), req)
	if err != nil {
		return err
	}

	if *out == "" {
		fmt.Println(resp.License)
		return nil
	}
	if err := os.WriteFile(*out, []byte(resp.License), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (id %s)\n", *out, resp.ID)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	keyFile := fs.String("key", "license_public.pem", "public key file")
	in := fs.String("in", "", "license file; stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	licenseText, err := readInput(*in)
	if err != nil {
		return err
	}
	pub, err := readPublicKey(*keyFile)
	if err != nil {
		return err
	}

	svc := services.NewLicenseService(security.NewECDSASigner(), nil, pub, quietLogger(), nil)
	result, err := svc.Verify(context.Background(), licenseText)
	if err != nil {
		return err
	}

	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "license file; stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	licenseText, err := readInput(*in)
	if err != nil {
		return err
	}

	// Inspection needs no keys; the service is built without them.
	svc := services.NewLicenseService(security.NewECDSASigner(), nil, nil, quietLogger(), nil)
	info, err := svc.Inspect(context.Background(), licenseText)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readPublicKey(path string) (any, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := security.DecodePublicKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("decode public key %s: %w", path, err)
	}
	return pub, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
