package httpapi

import (
	"crypto/subtle"
	"os"
	"strings"
)

// EnvAccounts builds a credential resolver from OWNER_ACCOUNTS. The format
// is "user:secret:prop-1|prop-2;user2:secret2:prop-3". Suitable for small
// installations; larger ones should swap in a user store behind the same
// function type.
func EnvAccounts() func(userID, secret string) ([]string, bool) {
	type account struct {
		secret      string
		propertyIDs []string
	}
	accounts := map[string]account{}

	for _, entry := range strings.Split(os.Getenv("OWNER_ACCOUNTS"), ";") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			continue
		}
		var props []string
		for _, p := range strings.Split(parts[2], "|") {
			if p = strings.TrimSpace(p); p != "" {
				props = append(props, p)
			}
		}
		if len(props) == 0 {
			continue
		}
		accounts[parts[0]] = account{secret: parts[1], propertyIDs: props}
	}

	return func(userID, secret string) ([]string, bool) {
		acc, ok := accounts[userID]
		if !ok {
			return nil, false
		}
		if subtle.ConstantTimeCompare([]byte(acc.secret), []byte(secret)) != 1 {
			return nil, false
		}
		return acc.propertyIDs, true
	}
}
