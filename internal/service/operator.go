package service

import "context"

type operatorKey struct{}

// WithOperator returns ctx carrying the id of the operator issuing a command.
// Control events recorded under ctx are attributed to that operator.
func WithOperator(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, operatorKey{}, id)
}

// OperatorFrom returns the operator id stored by WithOperator, or 0.
func OperatorFrom(ctx context.Context) int {
	id, _ := ctx.Value(operatorKey{}).(int)
	return id
}
