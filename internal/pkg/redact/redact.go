// redact маскирует персональные данные перед записью в логи.
package redact

import "strings"

// Email оставляет первые два символа локальной части и домен: "al***@example.com".
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Identity маскирует логин: email через Email, username — до первых двух символов.
func Identity(s string) string {
	if strings.Contains(s, "@") {
		return Email(s)
	}

	if len(s) > 2 {
		return s[:2] + "***"
	}

	return "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
