package resolver

import "fmt"

// Error is the resolution error taxonomy from spec.md §7 ("Resolution").
type Error struct {
	Kind    ErrorKind
	Context string // the referring file or directory, for diagnostics
	Name    string // the specifier or module name involved, if any
}

type ErrorKind uint8

const (
	ErrRequireRoot ErrorKind = iota
	ErrEmptyModuleName
	ErrModuleNotFound
	ErrMainNotFound
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrRequireRoot:
		if e.Context == "" {
			return fmt.Sprintf("main module is root path %s", e.Name)
		}
		return fmt.Sprintf("require of root path %s in %s", e.Name, e.Context)
	case ErrEmptyModuleName:
		return fmt.Sprintf("require('') in %s", e.Context)
	case ErrModuleNotFound:
		return fmt.Sprintf("module '%s' not found in %s", e.Name, e.Context)
	case ErrMainNotFound:
		return fmt.Sprintf("main module '%s' not found", e.Name)
	default:
		return "resolution error"
	}
}
