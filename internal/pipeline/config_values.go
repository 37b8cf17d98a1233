package pipeline

import "fmt"

// Config blob accessors. YAML decodes numbers as int or float64 depending
// on their spelling, so numeric reads accept both.

func configInt(config map[string]interface{}, key string, fallback int) (int, error) {
	value, ok := config[key]
	if !ok {
		return fallback, nil
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("config key %q must be an integer, got %T", key, value)
	}
}

func configFloat(config map[string]interface{}, key string, fallback float64) (float64, error) {
	value, ok := config[key]
	if !ok {
		return fallback, nil
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("config key %q must be a number, got %T", key, value)
	}
}

func configBool(config map[string]interface{}, key string, fallback bool) (bool, error) {
	value, ok := config[key]
	if !ok {
		return fallback, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("config key %q must be a boolean, got %T", key, value)
	}
	return b, nil
}

func configStringSlice(config map[string]interface{}, key string) ([]string, error) {
	value, ok := config[key]
	if !ok {
		return nil, nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("config key %q must be a list of strings, got %T", key, value)
	}
	out := make([]string, 0, len(list))
	for _, element := range list {
		s, ok := element.(string)
		if !ok {
			return nil, fmt.Errorf("config key %q must contain only strings, got %T", key, element)
		}
		out = append(out, s)
	}
	return out, nil
}

func configStringMap(config map[string]interface{}, key string) (map[string]string, error) {
	value, ok := config[key]
	if !ok {
		return nil, nil
	}
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config key %q must be a string map, got %T", key, value)
	}
	out := make(map[string]string, len(raw))
	for k, element := range raw {
		s, ok := element.(string)
		if !ok {
			return nil, fmt.Errorf("config key %q must map to strings, got %T", key, element)
		}
		out[k] = s
	}
	return out, nil
}
