package notify

import "weaponwatch/alerting/internal/models"

// ShouldNotify determines if a severity level should trigger a dispatch.
// Manually reported info alerts stay on the dashboard only.
func ShouldNotify(severity models.Severity) bool {
	return severity == models.SeverityCritical || severity == models.SeverityWarning
}

// GetChannelForSeverity returns the appropriate Slack channel based on alert severity
func GetChannelForSeverity(severity models.Severity, channels map[string]string) string {
	if severity == models.SeverityCritical {
		if ch, ok := channels["critical"]; ok {
			return ch
		}
	}
	return channels["default"]
}
