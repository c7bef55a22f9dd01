package utils

import (
	"strconv"
	"strings"

	"github.com/Fadil369/brainsait-rcm-sub002/conf"
)

func GetEnvInt(varName string, defaultVal int) int {
	v := conf.GetEnv(varName)
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvBool(varName string, defaultVal bool) bool {
	v := conf.GetEnv(varName)
	if v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultVal
}

// GetEnvList splits a comma-separated variable, dropping empty elements.
func GetEnvList(varName string, defaultVal []string) []string {
	v := conf.GetEnv(varName)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
