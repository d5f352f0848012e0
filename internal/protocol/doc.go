// Package protocol owns the wire contract of the debug link.
//
// Ownership boundary:
// - command/subfunction/response-code enumerations and magic constants
// - request/response records and their CRC scope
// - fixed-layout payload encode/decode (pure, stateless)
// - streaming block parsers/encoders for memory control
package protocol
