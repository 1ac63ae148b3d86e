package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bot":
		return botTemplate, nil
	case "session":
		return sessionTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const botTemplate = `name = "ryverbot"
org = "acme"
username = "bot"
# password or token may also come from RYVERBOT_PASSWORD / RYVERBOT_TOKEN
password = ""
token = ""
admin_addr = "127.0.0.1:9300"
# guards /pending and /metrics; may also come from RYVERBOT_ADMIN_TOKEN
admin_token = ""
cors_origins = ["http://localhost:3000"]
echo_prefix = "!echo "
presence = "available"
`

const sessionTemplate = `# Overrides for live session tuning. Omitted keys keep their defaults.
ping_interval = "10s"
ping_timeout = "5s"
ack_timeout = "5s"
typing_interval = "2.5s"
auto_reconnect = true
reconnect_delay = "5s"
max_reconnect_attempts = 0
security_mode = "production"

[tls]
ca_file = ""
server_name = ""
insecure_skip_verify = false
`
