package conf

/*
   This package wraps viper to provide configuration for the rejection sync
   service. Configuration comes from an env-format file when one is present,
   with the process environment as fallback for any key the file does not
   track.

   Assumptions:
   1. The configuration file is an env file.
   2. The configuration file, once made available to the application, stays
   immutable during the uptime of the application (exception is test).
*/

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

// Tracks whether a config file was found and parsed cleanly.
const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file now
	if err := v.ReadInConfig(); err != nil {
		state = configbad
	}
	return v
}

func init() {
	// Possible config file locations: local development and deployed
	// environments respectively.
	var locations = []string{
		"shared_files/decrypted",
		"/etc/brainsait-rcm",
	}

	if found, loc := findEnv(locations); found {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv walks the candidate locations and reports the first one containing
// a local.env file.
func findEnv(locations []string) (bool, string) {
	for _, loc := range locations {
		if _, err := os.Stat(loc + "/local.env"); err == nil {
			return true, loc
		}
	}
	return false, ""
}

// GetEnv retrieves the value stored in conf. If it does not exist, the empty
// string is returned.
func GetEnv(key string) string {
	if state == configgood {
		var value = envVars.GetString(key)

		// Even if the config file loaded, a key absent from it may still be
		// in the environment. Copy it into conf to avoid additional OS calls;
		// UnsetEnv must then clear both places.
		if value == "" {
			v, ok := os.LookupEnv(key)
			if ok {
				test := &testing.T{}
				_ = SetEnv(test, key, v)
				value = v
			}
		}

		return value
	}

	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to consult the conf struct first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}
		if v, exist := os.LookupEnv(key); exist {
			test := &testing.T{}
			_ = SetEnv(test, key, v)
			return v, exist
		}
		return "", false
	}

	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or in testing. The protect parameter is *testing.T
// so developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	var err error
	if state == configgood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}
	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or in testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}
	// Clear the environment copy too; GetEnv may have mirrored it into conf.
	return os.Unsetenv(key)
}
