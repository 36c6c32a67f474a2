package conf

// MergeDefaults merges the defaults of several namespaces into base.
// Every key of namespaces[ns] is stored as "ns.key". Keys of base are
// kept as they are and win over namespaced keys.
func MergeDefaults(base DefaultConfig, namespaces map[string]DefaultConfig) DefaultConfig {
	fullCap := len(base)
	for _, m := range namespaces {
		fullCap += len(m)
	}

	merged := make(DefaultConfig, fullCap)
	for ns, m := range namespaces {
		for key, val := range m {
			merged[ns+"."+key] = val
		}
	}

	for key, val := range base {
		merged[key] = val
	}

	return merged
}
