package conf_test

import (
	"testing"

	"github.com/factwatch/factwatch/util/conf"
	"github.com/stretchr/testify/assert"
)

func TestMergeDefaults(t *testing.T) {
	merged := conf.MergeDefaults(
		conf.DefaultConfig{"log_level": "info", "notify.sender": "Base"},
		map[string]conf.DefaultConfig{
			"notify":   {"sender": "Namespaced", "timeout": "10s"},
			"dispatch": {"max_concurrent": 4},
		},
	)

	assert.Equal(t, conf.DefaultConfig{
		"log_level":               "info",
		"notify.sender":           "Base",
		"notify.timeout":          "10s",
		"dispatch.max_concurrent": 4,
	}, merged)
}
