package results

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// Credentials authenticate against the results database.
type Credentials struct {
	User     string
	Password string
}

// SecretResolver produces database credentials at connection time.
type SecretResolver interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// EnvSecret reads the user and password from environment variables.
type EnvSecret struct {
	UserVar     string
	PasswordVar string
	lookup      func(string) (string, bool)
}

// Resolve implements SecretResolver.
func (e EnvSecret) Resolve(context.Context) (Credentials, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	user, _ := lookup(e.UserVar)
	if user == "" {
		return Credentials{}, fmt.Errorf("%s not set", e.UserVar)
	}
	pw, ok := lookup(e.PasswordVar)
	if !ok {
		return Credentials{}, fmt.Errorf("%s not set", e.PasswordVar)
	}
	return Credentials{User: user, Password: pw}, nil
}

// FernetSecret decrypts a Fernet token file with a key taken from the
// environment. The user name still comes from UserVar.
type FernetSecret struct {
	UserVar   string
	KeyVar    string
	TokenPath string
	// TTL rejects tokens older than this when positive.
	TTL    time.Duration
	lookup func(string) (string, bool)
}

// Resolve implements SecretResolver.
func (f FernetSecret) Resolve(context.Context) (Credentials, error) {
	lookup := f.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	user, _ := lookup(f.UserVar)
	if user == "" {
		return Credentials{}, fmt.Errorf("%s not set", f.UserVar)
	}
	rawKey, _ := lookup(f.KeyVar)
	if rawKey == "" {
		return Credentials{}, fmt.Errorf("%s not set", f.KeyVar)
	}
	keys, err := fernet.DecodeKeys(rawKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("decode fernet key: %w", err)
	}
	tok, err := os.ReadFile(f.TokenPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("read password token: %w", err)
	}
	pw := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(string(tok))), f.TTL, keys)
	if pw == nil {
		return Credentials{}, fmt.Errorf("password token %s failed verification", f.TokenPath)
	}
	return Credentials{User: user, Password: string(pw)}, nil
}

// NoSecret is used by dialects that carry no credentials (sqlite).
type NoSecret struct{}

// Resolve implements SecretResolver.
func (NoSecret) Resolve(context.Context) (Credentials, error) { return Credentials{}, nil }
