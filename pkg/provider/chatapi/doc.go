// Package chatapi translates between canonical messages (pkg/api) and the
// plain role/content message arrays accepted by chat-style HTTP backends.
//
// Translation is delegated to a Handler chosen per model name by an
// ordered list of HandlerRule values. Models without native tool support
// use a family-specific Handler that embeds tool definitions in the prompt
// and parses tool calls back out of the completion text.
package chatapi
