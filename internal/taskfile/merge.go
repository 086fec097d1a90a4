package taskfile

import (
	"fmt"
	"reflect"
)

// mergeInto merges src into dst, which must point to a struct or map of the same type.
// Slices are appended, maps are merged key by key, bools are OR'ed, and any
// other non-zero field of src overwrites dst.
func mergeInto(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.IsNil() {
		return fmt.Errorf("dst must be a non-nil pointer")
	}
	dstElem := dstVal.Elem()

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same type, got %s and %s", dstElem.Type(), srcVal.Type())
	}

	switch dstElem.Kind() {
	case reflect.Struct:
		mergeStructs(dstElem, srcVal)
	case reflect.Map:
		mergeMaps(dstElem, srcVal)
	default:
		return fmt.Errorf("cannot merge values of kind %s", dstElem.Kind())
	}
	return nil
}

func mergeMaps(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	iter := src.MapRange()
	for iter.Next() {
		dst.SetMapIndex(iter.Key(), iter.Value())
	}
}

func mergeStructs(dst, src reflect.Value) {
	for i := range src.NumField() {
		srcField := src.Field(i)
		dstField := dst.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			mergeMaps(dstField, srcField)
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}
}
