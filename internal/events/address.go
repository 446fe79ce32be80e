package events

import "strings"

// addressKeys are the payload fields that may carry the remote address, in
// lookup order.
var addressKeys = []string{"remoteIp", "ip", "source_ip"}

// SourceAddress extracts the remote address of an event.
// It returns "" when the event carries none.
func SourceAddress(e WebhookEvent) string {
	s, ok := e.Data.First(addressKeys...).AsString()
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// AddressExtractor pulls an address-like field out of an event ("" if none).
type AddressExtractor func(e WebhookEvent) string
