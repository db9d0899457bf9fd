package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
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

const serverTemplate = `addr = "127.0.0.1:12345"
admin_addr = ""
# admin_token = ""  # or NEWSWIRE_ADMIN_TOKEN; guards /health and /metrics
cors_origins = ["http://localhost:3000"]
max_line_bytes = 1048576
handshake_timeout = "30s"

api_base_url = "https://newsapi.org/v2/"
# api_key = ""  # prefer NEWS_API_KEY in the environment or .env
api_timeout = "10s"

# file | sqlite | redis | memory | none
store_backend = "file"
store_group = "GC5"
# store_dir = ""    # defaults to $XDG_DATA_HOME/newswire/responses
# sqlite_path = ""  # defaults to $XDG_DATA_HOME/newswire/responses.db
redis_addr = "127.0.0.1:6379"
redis_prefix = "newswire:response:"
redis_ttl = "0s"
`

const clientTemplate = `addr = "127.0.0.1:12345"
username = "Guest"
`
