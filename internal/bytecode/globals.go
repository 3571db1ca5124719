package bytecode

import "fmt"

// GlobalInfo describes a name resolvable through LOAD_GLOBAL.
type GlobalInfo struct {
	Name  string
	Arity int
}

var globals = map[string]GlobalInfo{}

func init() {
	RegisterGlobal("print", 1)
}

// RegisterGlobal records a global callable for diagnostics.
func RegisterGlobal(name string, arity int) {
	if name == "" {
		panic("global with empty name")
	}
	if _, exists := globals[name]; exists {
		panic(fmt.Sprintf("global %s already registered", name))
	}
	globals[name] = GlobalInfo{Name: name, Arity: arity}
}

// LookupGlobal returns global metadata if registered.
func LookupGlobal(name string) (GlobalInfo, bool) {
	info, ok := globals[name]
	return info, ok
}
