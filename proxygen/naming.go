package proxygen

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Selector converts a Go method name to the selector it dispatches.
// e.g., "TotalElements" → "totalElements", "DType" → "dType"
func Selector(method string) string {
	if method == "" {
		return method
	}
	return strings.ToLower(method[:1]) + method[1:]
}

// ProxyTypeName is the name of the wrapper type for an interface.
func ProxyTypeName(iface string) string {
	return iface + "Proxy"
}

// ConstructorName is the name of the wrapper constructor. It is exported
// exactly when the interface is.
// e.g., "Counter" → "NewCounter", "nativeInput" → "newNativeInput"
func ConstructorName(iface string) string {
	r, size := utf8.DecodeRuneInString(iface)
	if unicode.IsUpper(r) {
		return "New" + iface
	}
	return "new" + string(unicode.ToUpper(r)) + iface[size:]
}

// paramName keeps declared names and invents one for blank or unnamed
// parameters, and for names that would shadow the receiver.
func paramName(name string, i int) string {
	switch name {
	case "", "_", "x":
		return "a" + strconv.Itoa(i)
	}
	return name
}
