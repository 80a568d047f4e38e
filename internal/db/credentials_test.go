package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDSNFromEnv(t *testing.T) {
	t.Setenv(EnvUser, "serology_user")
	t.Setenv(EnvPassword, "hunter2")
	t.Setenv(EnvHostProd, "prod.example.org")
	t.Setenv(EnvHostTest, "test.example.org")

	dsn, err := DSNFromEnv("serology", false)
	require.NoError(t, err)
	require.Equal(t, "serology_user:hunter2@tcp(prod.example.org)/serology?parseTime=true", dsn)

	dsn, err = DSNFromEnv("serology", true)
	require.NoError(t, err)
	require.Equal(t, "serology_user:hunter2@tcp(test.example.org)/serology?parseTime=true", dsn)
}

func TestDSNFromEnvMissingCredentials(t *testing.T) {
	t.Setenv(EnvUser, "")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvHostProd, "")
	t.Setenv(EnvHostTest, "")

	_, err := DSNFromEnv("serology", false)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingCredentials))
}
