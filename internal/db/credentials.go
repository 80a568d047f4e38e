package db

import (
	"errors"
	"fmt"
	"os"
)

// Environment variables holding the LIMS database credentials.
const (
	EnvUser     = "NE_USER"
	EnvHostProd = "NE_HOST_PROD"
	EnvHostTest = "NE_HOST_TEST"
	EnvPassword = "NE_PASSWORD"
)

// ErrMissingCredentials is returned when the database credentials are
// not present in the environment.
var ErrMissingCredentials = errors.New(
	"db credentials not found in environment, need NE_USER, NE_HOST_{TEST,PROD}, NE_PASSWORD")

// DSNFromEnv builds a MySQL DSN for the serology database from the
// environment. When test is true the staging host is used.
func DSNFromEnv(database string, test bool) (string, error) {
	user := os.Getenv(EnvUser)
	hostVar := EnvHostProd
	if test {
		hostVar = EnvHostTest
	}
	host := os.Getenv(hostVar)
	password := os.Getenv(EnvPassword)
	if user == "" || host == "" || password == "" {
		return "", ErrMissingCredentials
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, password, host, database), nil
}
