package stats

// ipFamily classifies a remote address for the "ip_family" metric label.
func ipFamily(isIPv4 bool) string {
	if isIPv4 {
		return "ipv4"
	}

	return "ipv6"
}
