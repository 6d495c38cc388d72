package eval

import (
	"strings"

	"github.com/lychee-technology/yachtsql/internal/common"
	"github.com/lychee-technology/yachtsql/internal/ir"
	"github.com/lychee-technology/yachtsql/internal/storage"
)

// evalLambdaFunc intercepts the array higher-order builtins whose last
// argument is a lambda. The lambda's parameters are bound by extending the
// record with synthetic trailing fields.
func (ev *Evaluator) evalLambdaFunc(n *ir.ScalarFunc, rec storage.Record) (storage.Value, bool, error) {
	name := strings.ToUpper(n.Name)
	switch name {
	case "ARRAY_TRANSFORM", "ARRAY_FILTER":
	default:
		return storage.Value{}, false, nil
	}
	if len(n.Args) != 2 {
		return storage.NewNull(), true, common.NewArityError(name, 2, len(n.Args))
	}
	lambda, ok := n.Args[1].(*ir.Lambda)
	if !ok {
		return storage.NewNull(), true, common.NewTypeMismatchError("LAMBDA", "expression")
	}
	arr, err := ev.Eval(n.Args[0], rec)
	if err != nil {
		return storage.NewNull(), true, err
	}
	if arr.IsNull() {
		return storage.NewNull(), true, nil
	}
	if arr.Kind() != storage.KindArray {
		return storage.NewNull(), true, common.NewTypeMismatchError("ARRAY", arr.DataType().String())
	}

	elems := arr.AsArray()
	var out []storage.Value
	for i, elem := range elems {
		bound := ev.bindLambda(lambda, rec, elem, int64(i))
		result, err := ev.Eval(lambda.Body, bound)
		if err != nil {
			return storage.NewNull(), true, err
		}
		switch name {
		case "ARRAY_TRANSFORM":
			out = append(out, result)
		case "ARRAY_FILTER":
			if !result.IsNull() && result.Kind() == storage.KindBool && result.AsBool() {
				out = append(out, elem)
			}
		}
	}
	elemType := arrayElemType(out)
	if name == "ARRAY_FILTER" {
		elemType = arrayElemType(elems)
	}
	return storage.NewArray(out, elemType), true, nil
}

// bindLambda extends the record's schema with the lambda parameters: the
// element, and the element index when a second parameter is named.
func (ev *Evaluator) bindLambda(lambda *ir.Lambda, rec storage.Record, elem storage.Value, idx int64) storage.Record {
	fields := make([]storage.Field, 0, len(rec.Values)+2)
	if rec.Schema != nil {
		fields = append(fields, rec.Schema.Fields...)
	} else {
		for range rec.Values {
			fields = append(fields, storage.Field{})
		}
	}
	values := append(append([]storage.Value{}, rec.Values...), elem)
	fields = append(fields, storage.Field{Name: paramName(lambda, 0), Type: elem.DataType()})
	if len(lambda.Params) > 1 {
		values = append(values, storage.NewInt64(idx))
		fields = append(fields, storage.Field{Name: paramName(lambda, 1), Type: storage.Int64Type()})
	}
	schema := storage.NewSchema(fields)
	return storage.NewRecord(&schema, values)
}

func paramName(lambda *ir.Lambda, i int) string {
	if i < len(lambda.Params) {
		return lambda.Params[i]
	}
	return ""
}
