package fmtt

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// chain flattens err depth-first. Joined errors contribute every branch.
func chain(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		for e != nil {
			out = append(out, e)
			if j, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range j.Unwrap() {
					walk(inner)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)
	return out
}

// FprintErrChain writes each layer of err with its type.
func FprintErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}
	for i, e := range chain(err) {
		fmt.Fprintf(w, "[%d] %T: %v\n", i, e, e)
	}
}

// FprintErrChainDebug is FprintErrChain plus a spew dump and the exported
// struct fields of every layer.
func FprintErrChainDebug(w io.Writer, err error) {
	for i, e := range chain(err) {
		fmt.Fprintf(w, "[%d] %T\n", i, e)
		fmt.Fprintf(w, "   Error(): %v\n", e)

		spew.Fdump(w, e)

		rv := reflect.ValueOf(e)
		rt := rv.Type()
		if rt.Kind() == reflect.Ptr {
			if rv.IsNil() {
				continue
			}
			rv, rt = rv.Elem(), rt.Elem()
		}
		if rt.Kind() == reflect.Struct {
			for j := 0; j < rt.NumField(); j++ {
				if v := rv.Field(j); v.CanInterface() {
					f := rt.Field(j)
					fmt.Fprintf(w, "   Field %s (%s): %+v\n", f.Name, f.Type, v.Interface())
				}
			}
		}
	}
}
