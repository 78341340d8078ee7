package assert

import "fmt"

// NotNil panics when value is nil, name is used to identify the value in the panic message.
func NotNil(value any, name ...string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", label(name)))
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", label(name)))
	}
}

func label(name []string) string {
	if len(name) == 0 {
		return "value"
	}
	return name[0]
}
