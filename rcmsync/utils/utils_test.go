package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fadil369/brainsait-rcm-sub002/conf"
)

func TestGetEnvInt(t *testing.T) {
	key := "RCM_UTILS_TEST_INT"
	defer func() { _ = conf.UnsetEnv(t, key) }()

	assert.Equal(t, 7, GetEnvInt(key, 7))

	require.NoError(t, conf.SetEnv(t, key, "42"))
	assert.Equal(t, 42, GetEnvInt(key, 7))

	require.NoError(t, conf.SetEnv(t, key, "not a number"))
	assert.Equal(t, 7, GetEnvInt(key, 7))
}

func TestGetEnvBool(t *testing.T) {
	key := "RCM_UTILS_TEST_BOOL"
	defer func() { _ = conf.UnsetEnv(t, key) }()

	assert.True(t, GetEnvBool(key, true))

	require.NoError(t, conf.SetEnv(t, key, "false"))
	assert.False(t, GetEnvBool(key, true))

	require.NoError(t, conf.SetEnv(t, key, "yes please"))
	assert.True(t, GetEnvBool(key, true))
}

func TestGetEnvList(t *testing.T) {
	key := "RCM_UTILS_TEST_LIST"
	defer func() { _ = conf.UnsetEnv(t, key) }()

	fallback := []string{"REJECTED"}
	assert.Equal(t, fallback, GetEnvList(key, fallback))

	require.NoError(t, conf.SetEnv(t, key, "REJECTED, PARTIALLY_REJECTED ,"))
	assert.Equal(t, []string{"REJECTED", "PARTIALLY_REJECTED"}, GetEnvList(key, fallback))

	require.NoError(t, conf.SetEnv(t, key, " , "))
	assert.Equal(t, fallback, GetEnvList(key, fallback))
}
