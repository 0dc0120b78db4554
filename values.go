package cryo

import (
	"math"
	"reflect"
)

// leafValue reads a leaf field as an interface value, dereferencing pointers
//
// nil pointers, interfaces, slices and maps are absent
func leafValue(fv reflect.Value) (any, bool) {
	for {
		switch fv.Kind() {
		case reflect.Invalid:
			return nil, false
		case reflect.Ptr, reflect.Interface:
			if fv.IsNil() {
				return nil, false
			}
			fv = fv.Elem()
			continue
		case reflect.Slice, reflect.Map:
			if fv.IsNil() {
				return nil, false
			}
		}
		return fv.Interface(), true
	}
}

// assign sets dst to value, allocating pointers and converting compatible kinds
func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		cv, err := coerce(v, dst.Type().Elem())
		if err != nil {
			return err
		}
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(cv)
		dst.Set(p)
		return nil
	}
	cv, err := coerce(v, dst.Type())
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

func coerce(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		return coerce(v.Elem(), t)
	}
	if t.Kind() == reflect.Interface && v.Type().Implements(t) {
		return v, nil
	}
	switch {
	case isNumeric(v.Kind()) && isNumeric(t.Kind()):
		if overflows(v, t) {
			return reflect.Value{}, invalidValuef("value %v overflows %v", v.Interface(), t)
		}
		if isFloat(v.Kind()) && !isFloat(t.Kind()) && !isWholeNumber(v.Float()) {
			return reflect.Value{}, invalidValuef("value %v is not a whole number for %v", v.Interface(), t)
		}
		return v.Convert(t), nil
	case v.Kind() == reflect.String && t.Kind() == reflect.String,
		v.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return v.Convert(t), nil
	case isBytes(v.Type()) && t.Kind() == reflect.String,
		v.Kind() == reflect.String && isBytes(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, typeMismatchf("cannot assign %v to %v", v.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func overflows(v reflect.Value, t reflect.Type) bool {
	z := reflect.New(t).Elem()
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return z.OverflowInt(i)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return i < 0 || z.OverflowUint(uint64(i))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return u > 1<<63-1 || z.OverflowInt(int64(u))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return z.OverflowUint(u)
		}
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch t.Kind() {
		case reflect.Float32:
			return z.OverflowFloat(f)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			// 2^63 is exact as a float64, anything at or above it has no int64 form
			return math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 || z.OverflowInt(int64(f))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return math.IsNaN(f) || f < 0 || f >= math.MaxUint64 || z.OverflowUint(uint64(f))
		}
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isWholeNumber(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}
