// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package modelx

import (
	"fmt"
	"reflect"

	"github.com/veiloq/modeldiff/model"
)

var attrsType = reflect.TypeOf(([]model.Attr)(nil))

// Has finds the first element in the elements list that
// matches target, and if so, sets target to that attribute
// value and returns true.
func Has(elements, target interface{}) bool {
	ev := reflect.ValueOf(elements)
	if t := ev.Type(); t != attrsType {
		panic(fmt.Sprintf("unexpected elements type: %T", elements))
	}
	tv := reflect.ValueOf(target)
	if tv.Kind() != reflect.Ptr || tv.IsNil() {
		panic("target must be a non-nil pointer")
	}
	for i := 0; i < ev.Len(); i++ {
		if e := ev.Index(i).Elem(); e.Type().AssignableTo(tv.Type()) {
			tv.Elem().Set(e.Elem())
			return true
		}
	}
	return false
}
