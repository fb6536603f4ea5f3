// Package observability provides the command metrics pushed at the end of every run.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrOp      = "op"
	attrRole    = "role"
	attrSuccess = "success"
	attrEnabled = "enabled"
	attrCommand = "command"
)

func opAttr(op string) attribute.KeyValue {
	return attribute.String(attrOp, op)
}

func roleAttr(role string) attribute.KeyValue {
	return attribute.String(attrRole, role)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func enabledAttr(enabled bool) attribute.KeyValue {
	return attribute.Bool(attrEnabled, enabled)
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String(attrCommand, command)
}
