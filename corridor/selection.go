package corridor

import "strings"

// Methods returns the payout_methods block of a corridor schema, or nil when
// the schema validates the payload directly.
func Methods(schema map[string]any) map[string]any {
	methods, _ := schema["payout_methods"].(map[string]any)
	return methods
}

// SelectMethod picks the payout method block: the requested method when
// present, else "bank", else the first method in name order.
func SelectMethod(methods map[string]any, requested string) (string, map[string]any) {
	if len(methods) == 0 {
		return "", nil
	}

	lookup := make(map[string]string, len(methods))
	keys := make([]string, 0, len(methods))
	for key := range methods {
		lookup[strings.ToLower(key)] = key
		keys = append(keys, key)
	}

	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" {
		if key, ok := lookup[requested]; ok {
			block, _ := methods[key].(map[string]any)
			return key, block
		}
	}
	if key, ok := lookup["bank"]; ok {
		block, _ := methods[key].(map[string]any)
		return key, block
	}

	first := keys[0]
	for _, key := range keys[1:] {
		if key < first {
			first = key
		}
	}
	block, _ := methods[first].(map[string]any)
	return first, block
}

// SelectChannel picks the channel schema within a method block: requested,
// else the declared default_channel, else "local", else the first channel.
func SelectChannel(methodBlock map[string]any, requested string) (string, map[string]any) {
	channels, _ := methodBlock["channels"].(map[string]any)
	if len(channels) == 0 {
		return "", nil
	}

	lookup := make(map[string]string, len(channels))
	keys := make([]string, 0, len(channels))
	for key := range channels {
		lookup[strings.ToLower(key)] = key
		keys = append(keys, key)
	}

	pick := func(name string) (string, map[string]any, bool) {
		if key, ok := lookup[strings.ToLower(name)]; ok {
			schema, _ := channels[key].(map[string]any)
			return key, schema, true
		}
		return "", nil, false
	}

	requested = strings.TrimSpace(requested)
	if requested != "" {
		if key, schema, ok := pick(requested); ok {
			return key, schema
		}
	}
	if def, ok := methodBlock["default_channel"].(string); ok && def != "" {
		if key, schema, found := pick(def); found {
			return key, schema
		}
	}
	if key, schema, ok := pick("local"); ok {
		return key, schema
	}

	first := keys[0]
	for _, key := range keys[1:] {
		if key < first {
			first = key
		}
	}
	schema, _ := channels[first].(map[string]any)
	return first, schema
}

// DetectMethod spots an explicit payout method mention in a lowercased query.
func DetectMethod(normalized string) string {
	switch {
	case strings.Contains(normalized, "bank"):
		return "bank"
	case strings.Contains(normalized, "proxy"):
		return "proxy"
	case strings.Contains(normalized, "card"):
		return "card"
	case strings.Contains(normalized, "wallet"):
		return "wallet"
	case strings.Contains(normalized, "cash"):
		return "cash"
	}
	return ""
}

// DetectChannel spots an explicit channel mention in a lowercased query.
func DetectChannel(normalized string) string {
	switch {
	case strings.Contains(normalized, "wire"), strings.Contains(normalized, "international"):
		return "wire"
	case strings.Contains(normalized, "local"), strings.Contains(normalized, "domestic"), strings.Contains(normalized, "ach"):
		return "local"
	}
	return ""
}
