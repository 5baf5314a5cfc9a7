// Package config loads session client and mock service configuration.
//
// Values come from built-in defaults, then an optional YAML file named by
// PULSE_CONFIG_FILE, then environment variables:
//
//	PULSE_API_URL="http://127.0.0.1:8000/api"
//	PULSE_LOGIN_ROUTE="/login"
//	PULSE_HTTP_TIMEOUT="0"               # 0 disables the client timeout
//	PULSE_TOKEN_STORE="file"             # memory, file, redis, sqlite
//	PULSE_TOKEN_FILE="$HOME/.pulseofpeople/tokens.json"
//	PULSE_REDIS_URL="redis://localhost:6379/0"
//	PULSE_REDIS_PREFIX=""
//	PULSE_SQLITE_PATH="$HOME/.pulseofpeople/tokens.db"
//	PULSE_LOG_LEVEL="info"
//	PULSE_METRICS_ENABLED="true"
//	PULSE_OTEL_ENABLED="false"
//	PULSE_OTEL_ENDPOINT="localhost:4317"
//	PULSE_OTEL_SERVICE_NAME="pulse-session"
//	PULSE_OTEL_INSECURE="true"
//	PULSE_AUTHMOCK_ADDR="127.0.0.1:8000"
//	PULSE_AUTHMOCK_PREFIX="/api"
//
// Mock accounts can only be seeded from the file:
//
//	mock:
//	  accounts:
//	    - username: alice
//	      email: alice@example.com
//	      password: pw123
//	      role: volunteer
package config
