package util

import (
	"fmt"
	"strings"
)

// JoinString joins the String() of every element with sep
func JoinString[S fmt.Stringer](elems []S, sep string) string {
	sb := strings.Builder{}
	for i, elem := range elems {
		if i != 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(elem.String())
	}
	return sb.String()
}
