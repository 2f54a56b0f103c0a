package mirror

import (
	"encoding/json"
	"strings"
)

// Credentials is the service-account triple read from the environment.
type Credentials struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// Configured reports whether all three values are present. It is evaluated once at startup.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.ProjectID) != "" &&
		strings.TrimSpace(c.ClientEmail) != "" &&
		strings.TrimSpace(c.PrivateKey) != ""
}

// JSON renders a service_account document for option.WithCredentialsJSON.
// Escaped newlines, as written in .env files, are restored in the private key.
func (c Credentials) JSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   strings.TrimSpace(c.ProjectID),
		"client_email": strings.TrimSpace(c.ClientEmail),
		"private_key":  strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}
