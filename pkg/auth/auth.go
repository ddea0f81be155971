// Package auth resolves an RPC request's credentials to a source name,
// the only authorization concept the librarian has: every mutating and
// read operation is attributed to the source name that authenticated it,
// never to a finer-grained user identity. An opaque authenticator string
// maps to the source name configured for it, with an optional third-party
// identity check layered on top.
package auth

import (
	"context"

	"github.com/cuemby/librarian/pkg/config"
	"github.com/cuemby/librarian/pkg/errs"
)

// IdentityChecker verifies a username+token pair against a third-party
// identity endpoint, accepted in addition to the static `sources`
// table. Implementations that have no
// such endpoint configured should not be constructed; Authenticate
// treats a nil IdentityChecker as "third-party auth unavailable".
type IdentityChecker interface {
	CheckIdentity(ctx context.Context, username, token string) (bool, error)
}

// Credentials is the subset of an RPC payload auth.Authenticate needs.
// Authenticator is an opaque string matched against Config.Sources;
// Username/Token is the third-party scheme.
type Credentials struct {
	Authenticator string
	Username      string
	Token         string
}

// Authenticate resolves creds to the source name that should be recorded
// against the request. It fails with errs.AuthFailed whenever neither
// scheme resolves. The failure is deliberately generic so as not to
// help an attacker enumerate valid sources.
func Authenticate(ctx context.Context, cfg *config.Config, checker IdentityChecker, creds Credentials) (string, error) {
	if creds.Authenticator != "" {
		for name, src := range cfg.Sources {
			if src.Authenticator == creds.Authenticator {
				return name, nil
			}
		}
	}

	if creds.Username != "" && creds.Token != "" && checker != nil {
		ok, err := checker.CheckIdentity(ctx, creds.Username, creds.Token)
		if err != nil {
			return "", errs.Wrap(errs.AuthFailed, err, "authentication failed")
		}
		if ok {
			return creds.Username, nil
		}
	}

	return "", errs.AuthFailedf("authentication failed")
}
