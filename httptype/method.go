// Package httptype holds the plain request/response/header data shared by
// the parser, the connection and the router. Nothing in here touches a
// socket or a buffer.
package httptype

// Method is the enumerated request method. Anything the parser doesn't
// recognize becomes MethodUnknown, which is itself a parse error.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
	MethodHEAD
	MethodPUT
	MethodDELETE
	MethodTRACE
	MethodCONNECT
)

var methodNames = [...]string{
	MethodUnknown: "UNKNOWN",
	MethodGET:     "GET",
	MethodPOST:    "POST",
	MethodHEAD:    "HEAD",
	MethodPUT:     "PUT",
	MethodDELETE:  "DELETE",
	MethodTRACE:   "TRACE",
	MethodCONNECT: "CONNECT",
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "UNKNOWN"
}

// ParseMethod maps a request-line token to a Method. Anything not in the
// enumerated set maps to MethodUnknown, per spec.
func ParseMethod(s string) Method {
	for m, name := range methodNames {
		if m == int(MethodUnknown) {
			continue
		}
		if name == s {
			return Method(m)
		}
	}
	return MethodUnknown
}
