package attribute

import (
	"runtime"

	"golang.org/x/xerrors"
)

// BuiltinScope returns the Funcs map for the registered attribute functions
// named in spec §4.5: os(), language(), artefact(), cfg(). project and
// config are closed over so the functions can answer without additional
// plumbing through every call site.
func BuiltinScope(projectLanguage, artefactPath string, cfg map[string]string) map[string]func(args []string) (string, error) {
	return map[string]func(args []string) (string, error){
		"os": func(args []string) (string, error) {
			return runtime.GOOS, nil
		},
		"language": func(args []string) (string, error) {
			return projectLanguage, nil
		},
		"artefact": func(args []string) (string, error) {
			return artefactPath, nil
		},
		"cfg": func(args []string) (string, error) {
			if len(args) != 1 {
				return "", xerrors.Errorf("cfg() takes exactly one argument, got %d", len(args))
			}
			v, ok := cfg[args[0]]
			if !ok {
				return "", &UnknownVariableError{Name: args[0]}
			}
			return v, nil
		},
	}
}
