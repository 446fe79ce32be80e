package events

import "maps"

// samples hold realistic payloads per event type for test events.
var samples = map[string]Data{
	"auth.success": {
		"accountName": StringValue("user@example.com"),
		"accountId":   StringValue("acc-123"),
		"listenerId":  StringValue("imap"),
		"localPort":   NumberValue(993),
		"remoteIp":    StringValue("203.0.113.42"),
		"remotePort":  NumberValue(54321),
	},
	"auth.failed": {
		"remoteIp":    StringValue("198.51.100.10"),
		"accountName": StringValue("attacker@evil.example"),
		"listenerId":  StringValue("imap"),
		"localPort":   NumberValue(993),
		"remotePort":  NumberValue(12345),
	},
	"auth.error": {
		"details":    StringValue("Authentication mechanism not supported."),
		"listenerId": StringValue("pop3"),
		"localPort":  NumberValue(110),
		"remoteIp":   StringValue("192.0.2.177"),
		"remotePort": NumberValue(50428),
	},
	"security.ip-blocked": {
		"listenerId": StringValue("smtp"),
		"localPort":  NumberValue(25),
		"remoteIp":   StringValue("192.0.2.33"),
		"remotePort": NumberValue(40123),
	},
	"security.abuse-ban": {
		"remoteIp": StringValue("198.51.100.156"),
		"reason":   StringValue("Multiple failed attempts"),
	},
	"security.authentication-ban": {
		"remoteIp":    StringValue("203.0.113.218"),
		"accountName": StringValue("spam@test.example"),
	},
	"delivery.completed": {
		"remoteIp":  StringValue("192.0.2.26"),
		"messageId": StringValue("msg-789"),
	},
	"delivery.delivered": {
		"remoteIp":  StringValue("192.0.2.27"),
		"recipient": StringValue("dest@example.com"),
	},
	"delivery.failed": {
		"remoteIp":  StringValue("192.0.2.46"),
		"error":     StringValue("550 Mailbox unavailable"),
		"from":      StringValue("sender@example.com"),
		"recipient": StringValue("dest@example.com"),
		"messageId": StringValue("msg-fail-001"),
	},
	"server.startup": {
		"version": StringValue("v0.15.0"),
	},
	"server.startup-error": {
		"error":   StringValue("Configuration parse error"),
		"details": StringValue("Invalid syntax in config.toml line 42"),
	},
}

// SampleData returns example data for eventType carrying the test marker.
// Unknown types get a plain message.
func SampleData(eventType string) Data {
	d := Data{"message": StringValue("Test event")}
	if s, ok := samples[eventType]; ok {
		d = maps.Clone(s)
	}
	d[TestMarkerKey] = BoolValue(true)
	return d
}
