// Package transport groups the chat protocol adapters. Each subpackage
// satisfies router.Transport: it turns protocol events into chat.Inbound
// values and renders chat.Reply values for its medium.
package transport
