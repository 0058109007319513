package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# SISU Closing Notifier Configuration
# Environment variables (SISU_AUTH_HEADER, SMTP_HOST, WINDOW_DAYS, ...) override these values.

[sisu]
base_url = "https://api.sisu.co/api/v1"
# Authorization header sent to SISU. Prefer SISU_AUTH_HEADER or "sisu-notifier secrets set sisu".
auth_header = ""
# Context for the list call: "team" uses team_id, "agent" uses agent_id
context = "team"
team_id = 0
agent_id = 0
market_id = 0
column_filter = "appt_set_dt"
limit = 1000
# When set, the list call returns complete records and detail calls are skipped
add_return_columns = []
# Detail calls per concurrent batch
batch_size = 10
request_timeout = "20s"
# Requests per second, 0 disables client-side limiting
rate_limit = 5.0
retry_attempts = 3
# serve only: consecutive failed list calls before SISU is left alone for circuit_cooldown (0 disables)
circuit_threshold = 3
circuit_cooldown = "5m"

[closing]
# Notify for closings 0..window_days days away, both ends inclusive
window_days = 15
# IANA zone that decides what "today" is, empty for the host zone
timezone = ""

[notifications]
recipients = []
greeting_name = "there"
sender_name = "SISU Notifier"
# Print the report to the terminal as well
console = false

[notifications.email]
smtp_host = ""
# 465 uses implicit TLS, other ports negotiate STARTTLS
smtp_port = 465
username = ""
password = ""
from = ""

[notifications.webhook]
url = ""
timeout = "10s"

[server]
listen_addr = ":8080"
shutdown_timeout = "10s"

[schedule]
enabled = false
interval = "24h"
run_on_start = false

[store]
# Journal of past runs, for history only
enabled = true
path = ""

[logging]
# debug, info, warn, error
level = "info"
json = false
file = false
file_path = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	// Restricted permissions, the file may hold secrets
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
