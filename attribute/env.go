package attribute

import "os"

// lookupEnv is the fallback for ${VAR} resolution when the configuration
// scope does not define VAR (spec §4.5: "configuration or environment
// variable").
func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}
