package data

import (
	o "github.com/testharness/orchestrator/framework/opt"
	"github.com/testharness/orchestrator/servicedef"
)

func someString(s string) o.Maybe[string] { return o.Some(s) }

func someSend(endpoint, payload string) o.Maybe[servicedef.SendDefinition] {
	return o.Some(servicedef.SendDefinition{Endpoint: endpoint, Payload: payload})
}

func someReceive(endpoint, payload string) o.Maybe[servicedef.ReceiveDefinition] {
	return o.Some(servicedef.ReceiveDefinition{Endpoint: endpoint, Payload: o.Some(payload)})
}

func receiveWithHeader(e servicedef.ExpectationDefinition) o.Maybe[servicedef.ReceiveDefinition] {
	return o.Some(servicedef.ReceiveDefinition{Endpoint: "q", Headers: []servicedef.ExpectationDefinition{e}})
}
